package lease

import (
	"context"
	"sync"

	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/lease"
)

// MemoryStore is an in-process lease store for tests. The mutex gives Acquire
// the same single-winner guarantee the real backends provide, so election
// tests can share one store across many managers.
type MemoryStore struct {
	mu         sync.Mutex
	rec        *lease.Record
	refreshErr error
}

// NewMemoryStore creates an empty in-memory lease store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SetRefreshErr makes every subsequent Refresh fail with err, to exercise
// heartbeat-failure demotion.
func (s *MemoryStore) SetRefreshErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshErr = err
}

// Acquire creates the record if absent, ErrHeld otherwise.
func (s *MemoryStore) Acquire(ctx context.Context, rec lease.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec != nil {
		return lease.ErrHeld
	}
	r := rec
	s.rec = &r
	return nil
}

// Get returns the current record, ErrNotHeld when absent.
func (s *MemoryStore) Get(ctx context.Context) (lease.Record, error) {
	if err := ctx.Err(); err != nil {
		return lease.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return lease.Record{}, lease.ErrNotHeld
	}
	return *s.rec, nil
}

// Refresh overwrites the record.
func (s *MemoryStore) Refresh(ctx context.Context, rec lease.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshErr != nil {
		return s.refreshErr
	}
	r := rec
	s.rec = &r
	return nil
}

// Release deletes the record.
func (s *MemoryStore) Release(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}

var _ lease.Store = (*MemoryStore)(nil)
