// Package relay implements the relay substrate clients: a ZeroMQ
// implementation speaking to the request broker and the fan-out proxy, and an
// in-process bus for tests.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	zmq "github.com/pebbe/zmq4"

	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/relay"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/wire"
)

// Config holds the relay substrate endpoints.
type Config struct {
	// BrokerAddr is the request broker's backend endpoint the leader's REP
	// socket connects to (e.g. "tcp://broker:5556").
	BrokerAddr string
	// ProxyAddr is the fan-out proxy endpoint the leader's PUB socket
	// connects to (e.g. "tcp://proxy:5558").
	ProxyAddr string
}

// Validate checks that both endpoints are set.
func (c Config) Validate() error {
	if c.BrokerAddr == "" {
		return errors.New("broker address cannot be empty")
	}
	if c.ProxyAddr == "" {
		return errors.New("proxy address cannot be empty")
	}
	return nil
}

// ZMQDialer opens ZeroMQ sockets against the relay substrate. One dialer owns
// one ZeroMQ context; sockets are opened per leadership term and closed on
// demotion.
type ZMQDialer struct {
	config Config
	zctx   *zmq.Context
}

// NewZMQDialer creates a dialer with its own ZeroMQ context.
func NewZMQDialer(config Config) (*ZMQDialer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}
	zctx, err := zmq.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create zmq context: %w", err)
	}
	return &ZMQDialer{config: config, zctx: zctx}, nil
}

// DialReceiver connects a REP socket to the request broker.
func (d *ZMQDialer) DialReceiver(ctx context.Context) (relay.Receiver, error) {
	sock, err := d.zctx.NewSocket(zmq.REP)
	if err != nil {
		return nil, fmt.Errorf("failed to create REP socket: %w", err)
	}
	sock.SetLinger(0)
	if err := sock.Connect(d.config.BrokerAddr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to connect to broker %q: %w", d.config.BrokerAddr, err)
	}
	poller := zmq.NewPoller()
	poller.Add(sock, zmq.POLLIN)
	return &zmqReceiver{sock: sock, poller: poller}, nil
}

// DialPublisher connects a PUB socket to the fan-out proxy.
func (d *ZMQDialer) DialPublisher(ctx context.Context) (relay.Publisher, error) {
	sock, err := d.zctx.NewSocket(zmq.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}
	sock.SetLinger(0)
	if err := sock.Connect(d.config.ProxyAddr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to connect to proxy %q: %w", d.config.ProxyAddr, err)
	}
	return &zmqPublisher{sock: sock}, nil
}

// Close terminates the ZeroMQ context. All sockets must be closed first.
func (d *ZMQDialer) Close() error {
	return d.zctx.Term()
}

type zmqReceiver struct {
	sock   *zmq.Socket
	poller *zmq.Poller
}

// Recv polls the REP socket without blocking; an idle socket maps to
// relay.ErrNoRequest so the caller can interleave heartbeat work.
func (r *zmqReceiver) Recv(ctx context.Context) (*wire.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	polled, err := r.poller.Poll(0)
	if err != nil {
		return nil, fmt.Errorf("failed to poll broker socket: %w", err)
	}
	if len(polled) == 0 {
		return nil, relay.ErrNoRequest
	}
	raw, err := r.sock.RecvBytes(0)
	if err != nil {
		return nil, fmt.Errorf("failed to receive request: %w", err)
	}
	var req wire.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		// The REP socket owes a reply even for garbage; surface a typed
		// request with an empty service so the dispatcher rejects it.
		return &wire.Request{}, nil
	}
	return &req, nil
}

func (r *zmqReceiver) Reply(ctx context.Context, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}
	if _, err := r.sock.SendBytes(raw, 0); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

func (r *zmqReceiver) Close() error {
	return r.sock.Close()
}

type zmqPublisher struct {
	sock *zmq.Socket
}

func (p *zmqPublisher) Publish(ctx context.Context, topic string, ev wire.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := wire.EncodeFrame(topic, ev)
	if err != nil {
		return err
	}
	if _, err := p.sock.Send(frame, 0); err != nil {
		return fmt.Errorf("failed to publish to topic %q: %w", topic, err)
	}
	return nil
}

func (p *zmqPublisher) Close() error {
	return p.sock.Close()
}

var (
	_ relay.Dialer    = (*ZMQDialer)(nil)
	_ relay.Receiver  = (*zmqReceiver)(nil)
	_ relay.Publisher = (*zmqPublisher)(nil)
)
