package relay

import (
	"encoding/json"
	"fmt"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/wire"
)

// Requester is the client side of the request broker: one REQ socket, one
// outstanding request at a time. It backs the coordctl commands.
type Requester struct {
	zctx *zmq.Context
	sock *zmq.Socket
}

// NewRequester connects a REQ socket to the broker's frontend endpoint.
// timeout bounds both send and receive, so a leaderless system fails fast
// instead of hanging the caller.
func NewRequester(addr string, timeout time.Duration) (*Requester, error) {
	zctx, err := zmq.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create zmq context: %w", err)
	}
	sock, err := zctx.NewSocket(zmq.REQ)
	if err != nil {
		zctx.Term()
		return nil, fmt.Errorf("failed to create REQ socket: %w", err)
	}
	sock.SetLinger(0)
	sock.SetSndtimeo(timeout)
	sock.SetRcvtimeo(timeout)
	if err := sock.Connect(addr); err != nil {
		sock.Close()
		zctx.Term()
		return nil, fmt.Errorf("failed to connect to broker %q: %w", addr, err)
	}
	return &Requester{zctx: zctx, sock: sock}, nil
}

// Do sends one request and returns the raw JSON reply.
func (r *Requester) Do(service string, data any) (json.RawMessage, error) {
	req, err := wire.NewRequest(service, data)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	if _, err := r.sock.SendBytes(raw, 0); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	reply, err := r.sock.RecvBytes(0)
	if err != nil {
		return nil, fmt.Errorf("no reply from coordinator: %w", err)
	}
	return json.RawMessage(reply), nil
}

// Close releases the socket and context.
func (r *Requester) Close() error {
	err := r.sock.Close()
	if termErr := r.zctx.Term(); err == nil {
		err = termErr
	}
	return err
}
