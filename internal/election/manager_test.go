package election

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	leasestore "github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/lease"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/lease"
)

// The timeout is generous relative to the interval so a scheduling hiccup on a
// loaded test machine never looks like a missed heartbeat window.
const (
	testInterval = 20 * time.Millisecond
	testTimeout  = 200 * time.Millisecond
)

// fakeHandler records leadership transitions and lets tests fail promotion.
type fakeHandler struct {
	mu       sync.Mutex
	elected  int
	demoted  int
	electErr error
}

func (h *fakeHandler) OnElected(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.electErr != nil {
		return h.electErr
	}
	h.elected++
	return nil
}

func (h *fakeHandler) Step(ctx context.Context) (bool, error) {
	return false, nil
}

func (h *fakeHandler) OnDemoted() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.demoted++
}

func (h *fakeHandler) counts() (elected, demoted int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.elected, h.demoted
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not reached within timeout")
}

func startManager(t *testing.T, ctx context.Context, id int, store lease.Store, h Handler) *Manager {
	t.Helper()
	m, err := NewManager(id, store, h, testInterval, testTimeout)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	go m.Run(ctx)
	return m
}

func TestNewManager_RejectsBadConfig(t *testing.T) {
	store := leasestore.NewMemoryStore()
	h := &fakeHandler{}

	if _, err := NewManager(1, nil, h, testInterval, testTimeout); err == nil {
		t.Error("Expected error for nil lease store")
	}
	if _, err := NewManager(1, store, nil, testInterval, testTimeout); err == nil {
		t.Error("Expected error for nil handler")
	}
	if _, err := NewManager(1, store, h, testInterval, testInterval); err == nil {
		t.Error("Expected error when timeout does not exceed interval")
	}
}

func TestManager_AcquiresVacantLease(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := leasestore.NewMemoryStore()
	h := &fakeHandler{}
	m := startManager(t, ctx, 1, store, h)

	waitFor(t, time.Second, func() bool { return m.State() == Leader })

	rec, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.OwnerID != 1 {
		t.Errorf("Expected lease owner 1, got %d", rec.OwnerID)
	}
	elected, _ := h.counts()
	if elected != 1 {
		t.Errorf("Expected one promotion, got %d", elected)
	}
}

func TestManager_SingleLeaderAmongReplicas(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := leasestore.NewMemoryStore()
	managers := make([]*Manager, 3)
	for i := range managers {
		managers[i] = startManager(t, ctx, i+1, store, &fakeHandler{})
	}

	leaders := func() int {
		n := 0
		for _, m := range managers {
			if m.State() == Leader {
				n++
			}
		}
		return n
	}
	waitFor(t, time.Second, func() bool { return leaders() == 1 })

	// Leadership must stay with exactly one replica across several cycles.
	for i := 0; i < 5; i++ {
		time.Sleep(testInterval)
		if n := leaders(); n != 1 {
			t.Fatalf("Expected exactly 1 leader, got %d", n)
		}
	}
}

func TestManager_TakesOverStaleLease(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := leasestore.NewMemoryStore()
	// A lease from a crashed replica: far past its heartbeat window.
	if err := store.Acquire(ctx, lease.New(9, time.Now().Add(-time.Minute))); err != nil {
		t.Fatalf("Seeding stale lease failed: %v", err)
	}

	m := startManager(t, ctx, 2, store, &fakeHandler{})

	waitFor(t, time.Second, func() bool { return m.State() == Leader })

	rec, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.OwnerID != 2 {
		t.Errorf("Expected takeover by replica 2, got owner %d", rec.OwnerID)
	}
}

func TestManager_HeartbeatFailureDemotes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := leasestore.NewMemoryStore()
	h := &fakeHandler{}
	// A wide staleness window keeps the demoted replica from clearing its own
	// leftover lease while the test inspects it.
	m, err := NewManager(1, store, h, testInterval, time.Minute)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	go m.Run(ctx)

	waitFor(t, time.Second, func() bool { return m.State() == Leader })

	store.SetRefreshErr(errors.New("backend unreachable"))

	waitFor(t, time.Second, func() bool { return m.State() == Follower })
	waitFor(t, time.Second, func() bool {
		_, demoted := h.counts()
		return demoted >= 1
	})

	// The lease stays behind for other replicas to time out; demotion on a
	// failed heartbeat must not delete it.
	if _, err := store.Get(context.Background()); err != nil {
		t.Errorf("Expected lease to survive demotion, got %v", err)
	}
}

func TestManager_PromotionFailureReleasesLease(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := leasestore.NewMemoryStore()
	h := &fakeHandler{electErr: errors.New("state load failed")}
	m, err := NewManager(1, store, h, testInterval, testTimeout)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	// Give the manager a few follower cycles to attempt acquisition.
	time.Sleep(3 * testInterval)
	cancel()
	<-done

	if m.State() != Follower {
		t.Error("Replica must stay follower when promotion fails")
	}
	if _, err := store.Get(context.Background()); !errors.Is(err, lease.ErrNotHeld) {
		t.Errorf("Expected released lease after failed promotion, got %v", err)
	}
}

func TestManager_ShutdownReleasesLease(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	store := leasestore.NewMemoryStore()
	h := &fakeHandler{}
	m, err := NewManager(1, store, h, testInterval, testTimeout)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	waitFor(t, time.Second, func() bool { return m.State() == Leader })

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if _, err := store.Get(context.Background()); !errors.Is(err, lease.ErrNotHeld) {
		t.Errorf("Expected released lease after shutdown, got %v", err)
	}
	_, demoted := h.counts()
	if demoted != 1 {
		t.Errorf("Expected one demotion on shutdown, got %d", demoted)
	}
}

func TestManager_FailoverAfterLeaderStops(t *testing.T) {
	store := leasestore.NewMemoryStore()

	firstCtx, stopFirst := context.WithCancel(context.Background())
	first := startManager(t, firstCtx, 1, store, &fakeHandler{})
	waitFor(t, time.Second, func() bool { return first.State() == Leader })

	// Simulate a crash: stop the leader. Shutdown releases the lease, so the
	// standby does not even need to wait out the staleness window.
	stopFirst()

	secondCtx, stopSecond := context.WithCancel(context.Background())
	defer stopSecond()
	second := startManager(t, secondCtx, 2, store, &fakeHandler{})

	waitFor(t, time.Second, func() bool { return second.State() == Leader })

	rec, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.OwnerID != 2 {
		t.Errorf("Expected failover to replica 2, got owner %d", rec.OwnerID)
	}
}

func TestManager_WorksWithFileStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := leasestore.NewFileStore(filepath.Join(t.TempDir(), "leader.lock"))
	m := startManager(t, ctx, 4, store, &fakeHandler{})

	waitFor(t, time.Second, func() bool { return m.State() == Leader })

	rec, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.OwnerID != 4 {
		t.Errorf("Expected owner 4, got %d", rec.OwnerID)
	}
}
