// Package coordinator implements the leader-only request processor: it loads
// state on leadership acquisition, serves relay requests one at a time in
// receive order, stamps every event with the Lamport clock and fans published
// events out by topic.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/audit"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/election"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/session"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/lamport"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/relay"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/store"
)

// Coordinator serves requests while its replica holds leadership. In-memory
// state exists only between OnElected and OnDemoted; a follower holds none.
type Coordinator struct {
	replicaID int
	gateway   store.Gateway
	dialer    relay.Dialer
	sessions  *session.Manager
	audit     audit.Log
	clock     *lamport.Clock

	state     *State
	receiver  relay.Receiver
	publisher relay.Publisher

	now func() time.Time
}

// New wires a coordinator to its collaborators. The Lamport clock lives for
// the whole process, not one leadership term; it is reset only at process
// start.
func New(replicaID int, gateway store.Gateway, dialer relay.Dialer, sessions *session.Manager, auditLog audit.Log) (*Coordinator, error) {
	if gateway == nil {
		return nil, errors.New("persistence gateway cannot be nil")
	}
	if dialer == nil {
		return nil, errors.New("relay dialer cannot be nil")
	}
	if sessions == nil {
		return nil, errors.New("session manager cannot be nil")
	}
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Coordinator{
		replicaID: replicaID,
		gateway:   gateway,
		dialer:    dialer,
		sessions:  sessions,
		audit:     auditLog,
		clock:     &lamport.Clock{},
		now:       time.Now,
	}, nil
}

// Clock exposes the coordinator's Lamport clock.
func (c *Coordinator) Clock() *lamport.Clock {
	return c.clock
}

// OnElected reloads the full state from the persistence gateway, opens the
// leader-only relay connections and reconciles every known bot identity. It
// runs before any request is accepted; failure aborts the promotion.
func (c *Coordinator) OnElected(ctx context.Context) error {
	state, err := LoadState(ctx, c.gateway)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	receiver, err := c.dialer.DialReceiver(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to request broker: %w", err)
	}
	publisher, err := c.dialer.DialPublisher(ctx)
	if err != nil {
		receiver.Close()
		return fmt.Errorf("failed to connect to fan-out proxy: %w", err)
	}

	c.state = state
	c.receiver = receiver
	c.publisher = publisher

	if err := c.reconcileAllBots(ctx); err != nil {
		log.Printf("[replica-%d] bot reconciliation on promotion failed: %v", c.replicaID, err)
	}
	return nil
}

// OnDemoted closes the leader-only connections and drops the in-memory state.
func (c *Coordinator) OnDemoted() {
	if c.receiver != nil {
		c.receiver.Close()
		c.receiver = nil
	}
	if c.publisher != nil {
		c.publisher.Close()
		c.publisher = nil
	}
	c.state = nil
}

// Step receives and serves at most one request. A relay receive failure tears
// the connection down and redials so the loop never silently stalls; request
// failures become ERRO replies inside handle and never surface here.
func (c *Coordinator) Step(ctx context.Context) (bool, error) {
	req, err := c.receiver.Recv(ctx)
	if errors.Is(err, relay.ErrNoRequest) {
		return false, nil
	}
	if err != nil {
		if redialErr := c.redialReceiver(ctx); redialErr != nil {
			return false, fmt.Errorf("receive failed (%v) and redial failed: %w", err, redialErr)
		}
		return false, fmt.Errorf("receive failed, connection recreated: %w", err)
	}

	reply := c.handle(ctx, req)
	if err := c.receiver.Reply(ctx, reply); err != nil {
		return true, fmt.Errorf("failed to send reply: %w", err)
	}
	return true, nil
}

func (c *Coordinator) redialReceiver(ctx context.Context) error {
	c.receiver.Close()
	receiver, err := c.dialer.DialReceiver(ctx)
	if err != nil {
		return err
	}
	c.receiver = receiver
	return nil
}

var _ election.Handler = (*Coordinator)(nil)
