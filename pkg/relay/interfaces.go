package relay

import (
	"context"
	"errors"
	"io"

	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/wire"
)

// ErrNoRequest is returned by Recv when no request is waiting. It signals an
// idle cycle, not a failure; callers should sleep briefly and poll again.
var ErrNoRequest = errors.New("no request available")

// Receiver is the coordinator's end of the request-routing broker. The
// underlying socket is strictly request/reply: every successful Recv must be
// followed by exactly one Reply before the next Recv.
type Receiver interface {
	io.Closer

	// Recv returns the next pending request without blocking, or ErrNoRequest
	// when the queue is empty.
	Recv(ctx context.Context) (*wire.Request, error)

	// Reply sends the JSON-encoded payload back to the client that issued the
	// last received request.
	Reply(ctx context.Context, payload any) error
}

// Publisher is the coordinator's end of the fan-out bus.
type Publisher interface {
	io.Closer

	// Publish fans the event out to every subscriber of the topic. The topic
	// is either a channel title or a user name (private direct messages).
	Publish(ctx context.Context, topic string, ev wire.Event) error
}

// Dialer opens relay connections. The coordinator dials a fresh
// receiver/publisher pair on every leadership acquisition and closes them on
// demotion, so a demoted replica can no longer reply or publish.
type Dialer interface {
	DialReceiver(ctx context.Context) (Receiver, error)
	DialPublisher(ctx context.Context) (Publisher, error)
}
