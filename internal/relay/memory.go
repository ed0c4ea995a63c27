package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/relay"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/wire"
)

// ErrBusClosed is returned when a closed bus endpoint is used.
var ErrBusClosed = errors.New("memory bus is closed")

// MemoryBus is an in-process stand-in for the broker and proxy, used by
// package tests. Requests are queued FIFO, replies are captured in order, and
// published frames are kept per topic.
type MemoryBus struct {
	mu        sync.Mutex
	pending   []*wire.Request
	replies   []json.RawMessage
	published map[string][]string
	closed    bool
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{published: make(map[string][]string)}
}

// EnqueueRequest queues a request for the coordinator to receive.
func (b *MemoryBus) EnqueueRequest(service string, data any) error {
	req, err := wire.NewRequest(service, data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, req)
	return nil
}

// Replies returns every captured reply in send order.
func (b *MemoryBus) Replies() []json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]json.RawMessage, len(b.replies))
	copy(out, b.replies)
	return out
}

// LastReply unmarshals the most recent reply into v.
func (b *MemoryBus) LastReply(v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.replies) == 0 {
		return errors.New("no replies captured")
	}
	return json.Unmarshal(b.replies[len(b.replies)-1], v)
}

// Published returns the decoded events fanned out to a topic.
func (b *MemoryBus) Published(topic string) ([]wire.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := make([]wire.Event, 0, len(b.published[topic]))
	for _, frame := range b.published[topic] {
		frameTopic, ev, err := wire.DecodeFrame(frame)
		if err != nil {
			return nil, err
		}
		if frameTopic != topic {
			return nil, fmt.Errorf("frame routed to wrong topic: %q", frameTopic)
		}
		events = append(events, ev)
	}
	return events, nil
}

// DialReceiver returns a receiver view over the bus.
func (b *MemoryBus) DialReceiver(ctx context.Context) (relay.Receiver, error) {
	return &busReceiver{bus: b}, nil
}

// DialPublisher returns a publisher view over the bus.
func (b *MemoryBus) DialPublisher(ctx context.Context) (relay.Publisher, error) {
	return &busPublisher{bus: b}, nil
}

type busReceiver struct {
	bus    *MemoryBus
	closed bool
}

func (r *busReceiver) Recv(ctx context.Context) (*wire.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.bus.mu.Lock()
	defer r.bus.mu.Unlock()
	if r.closed {
		return nil, ErrBusClosed
	}
	if len(r.bus.pending) == 0 {
		return nil, relay.ErrNoRequest
	}
	req := r.bus.pending[0]
	r.bus.pending = r.bus.pending[1:]
	return req, nil
}

func (r *busReceiver) Reply(ctx context.Context, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}
	r.bus.mu.Lock()
	defer r.bus.mu.Unlock()
	if r.closed {
		return ErrBusClosed
	}
	r.bus.replies = append(r.bus.replies, raw)
	return nil
}

func (r *busReceiver) Close() error {
	r.bus.mu.Lock()
	defer r.bus.mu.Unlock()
	r.closed = true
	return nil
}

type busPublisher struct {
	bus    *MemoryBus
	closed bool
}

func (p *busPublisher) Publish(ctx context.Context, topic string, ev wire.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := wire.EncodeFrame(topic, ev)
	if err != nil {
		return err
	}
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	if p.closed {
		return ErrBusClosed
	}
	p.bus.published[topic] = append(p.bus.published[topic], frame)
	return nil
}

func (p *busPublisher) Close() error {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	p.closed = true
	return nil
}

var (
	_ relay.Dialer    = (*MemoryBus)(nil)
	_ relay.Receiver  = (*busReceiver)(nil)
	_ relay.Publisher = (*busPublisher)(nil)
)
