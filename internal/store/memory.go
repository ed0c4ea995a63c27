package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryGateway is an in-memory persistence gateway for tests. It copies maps
// on the way in and out and can be told to fail saves to exercise
// persistence-error paths.
type MemoryGateway struct {
	mu          sync.Mutex
	collections map[string]map[string]json.RawMessage
	saveErr     error
	saves       int
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{collections: make(map[string]map[string]json.RawMessage)}
}

// SetSaveErr makes every subsequent Save fail with err (nil restores normal
// behavior).
func (g *MemoryGateway) SetSaveErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saveErr = err
}

// SaveCount returns how many saves have succeeded, letting tests assert that
// unchanged state was not rewritten.
func (g *MemoryGateway) SaveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saves
}

// Load returns a copy of the collection, empty when never saved.
func (g *MemoryGateway) Load(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	data := make(map[string]json.RawMessage, len(g.collections[collection]))
	for id, raw := range g.collections[collection] {
		data[id] = raw
	}
	return data, nil
}

// Save replaces the collection with a copy of data.
func (g *MemoryGateway) Save(ctx context.Context, collection string, data map[string]json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveErr != nil {
		return g.saveErr
	}
	stored := make(map[string]json.RawMessage, len(data))
	for id, raw := range data {
		stored[id] = raw
	}
	g.collections[collection] = stored
	g.saves++
	return nil
}
