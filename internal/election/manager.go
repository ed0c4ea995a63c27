// Package election maintains the shared leadership lease. Exactly one replica
// is intended to hold LEADER state at a time; leadership is advisory and
// lease-based, so a brief multi-leader window after a partition heals is a
// known limitation of the design.
package election

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/lease"
)

// State is the replica's leadership state.
type State int32

const (
	// Follower replicas poll the lease and never mutate shared state.
	Follower State = iota
	// Leader is the single replica processing requests.
	Leader
)

func (s State) String() string {
	switch s {
	case Follower:
		return "FOLLOWER"
	case Leader:
		return "LEADER"
	default:
		return "UNKNOWN"
	}
}

// Handler is the coordinator-side contract for leadership transitions and
// request draining.
type Handler interface {
	// OnElected runs before any request is served: reload state from the
	// persistence gateway and open leader-only connections. An error aborts
	// the promotion and releases the lease.
	OnElected(ctx context.Context) error

	// Step processes at most one pending request. It returns false when no
	// request was available, signalling an idle cycle.
	Step(ctx context.Context) (bool, error)

	// OnDemoted releases leader-only resources. After it returns the replica
	// must not publish or persist anything further.
	OnDemoted()
}

// Manager runs the replica's single logical processing loop: the follower
// lease poll and the leader heartbeat/drain cycle interleave on one goroutine.
type Manager struct {
	replicaID int
	leases    lease.Store
	handler   Handler
	interval  time.Duration
	timeout   time.Duration
	idleSleep time.Duration

	state atomic.Int32
	now   func() time.Time
}

// NewManager builds an election manager. interval is both the leader's
// heartbeat refresh period and the follower's poll period; timeout is the
// staleness threshold for takeover and must exceed the interval.
func NewManager(replicaID int, leases lease.Store, handler Handler, interval, timeout time.Duration) (*Manager, error) {
	if leases == nil {
		return nil, errors.New("lease store cannot be nil")
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	if interval <= 0 {
		return nil, errors.New("heartbeat interval must be positive")
	}
	if timeout <= interval {
		return nil, fmt.Errorf("heartbeat timeout (%s) must exceed the interval (%s)", timeout, interval)
	}
	idle := interval / 20
	if idle < 10*time.Millisecond {
		idle = 10 * time.Millisecond
	}
	if idle > 100*time.Millisecond {
		idle = 100 * time.Millisecond
	}
	return &Manager{
		replicaID: replicaID,
		leases:    leases,
		handler:   handler,
		interval:  interval,
		timeout:   timeout,
		idleSleep: idle,
		now:       time.Now,
	}, nil
}

// State reports the current leadership state. Safe for concurrent use.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Run drives the replica until the context is cancelled. On cancellation a
// leading replica demotes itself and releases the lease.
func (m *Manager) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			if m.State() == Leader {
				m.demote()
				m.releaseLease()
			}
			return err
		}
		if m.State() == Leader {
			m.leaderCycle(ctx)
		} else {
			m.followerCycle(ctx)
		}
	}
}

// leaderCycle refreshes the heartbeat, then drains requests until the next
// refresh is due. Any heartbeat failure demotes immediately: a replica that
// cannot prove liveness must stop acting as leader.
func (m *Manager) leaderCycle(ctx context.Context) {
	rec := lease.New(m.replicaID, m.now())
	if err := m.leases.Refresh(ctx, rec); err != nil {
		log.Printf("[replica-%d] heartbeat write failed, stepping down: %v", m.replicaID, err)
		m.demote()
		return
	}

	deadline := m.now().Add(m.interval)
	for m.now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
		processed, err := m.handler.Step(ctx)
		if err != nil {
			log.Printf("[replica-%d] request step failed: %v", m.replicaID, err)
			m.sleep(ctx, m.idleSleep)
			continue
		}
		if !processed {
			m.sleep(ctx, m.idleSleep)
		}
	}
}

// followerCycle polls the lease once: acquire when absent, clear when stale,
// otherwise sleep out the interval.
func (m *Manager) followerCycle(ctx context.Context) {
	rec, err := m.leases.Get(ctx)
	switch {
	case errors.Is(err, lease.ErrNotHeld):
		if m.tryAcquire(ctx) {
			return // start the leader cycle without sleeping
		}
	case err != nil:
		log.Printf("[replica-%d] lease read failed: %v", m.replicaID, err)
	case rec.Stale(m.now(), m.timeout):
		log.Printf("[replica-%d] leader %d missed its heartbeat window, clearing lease", m.replicaID, rec.OwnerID)
		// Deleting makes the lease eligible for acquisition on a subsequent
		// poll, by this replica or any other.
		if err := m.leases.Release(ctx); err != nil {
			log.Printf("[replica-%d] failed to clear stale lease: %v", m.replicaID, err)
		}
	}
	m.sleep(ctx, m.interval)
}

// tryAcquire attempts the atomic create-if-absent acquisition and, on
// success, promotes through the handler. Promotion failure releases the lease
// so another replica can take over.
func (m *Manager) tryAcquire(ctx context.Context) bool {
	rec := lease.New(m.replicaID, m.now())
	if err := m.leases.Acquire(ctx, rec); err != nil {
		if !errors.Is(err, lease.ErrHeld) {
			log.Printf("[replica-%d] lease acquisition failed: %v", m.replicaID, err)
		}
		return false
	}
	log.Printf("[replica-%d] acquired leadership, loading state", m.replicaID)
	if err := m.handler.OnElected(ctx); err != nil {
		log.Printf("[replica-%d] promotion failed, releasing lease: %v", m.replicaID, err)
		m.releaseLease()
		return false
	}
	m.state.Store(int32(Leader))
	return true
}

func (m *Manager) demote() {
	if m.state.Swap(int32(Follower)) == int32(Leader) {
		log.Printf("[replica-%d] stepping down to follower", m.replicaID)
		m.handler.OnDemoted()
	}
}

// releaseLease uses a fresh context: the run context may already be cancelled
// when shutting down.
func (m *Manager) releaseLease() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.leases.Release(ctx); err != nil {
		log.Printf("[replica-%d] failed to release lease: %v", m.replicaID, err)
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
