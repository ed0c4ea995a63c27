// Package store provides the persistence gateway implementations: Redis for
// shared deployments, JSON files matching the original on-disk layout, and an
// in-memory gateway for tests.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileGateway persists each collection as a pretty-printed JSON file
// "<dir>/<collection>.json".
type FileGateway struct {
	dir string
}

// NewFileGateway creates a file-backed gateway rooted at dir, creating the
// directory if needed.
func NewFileGateway(dir string) (*FileGateway, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %q: %w", dir, err)
	}
	return &FileGateway{dir: dir}, nil
}

// Load reads a collection file. A missing file loads as an empty map.
func (g *FileGateway) Load(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(g.path(collection))
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %q: %w", collection, err)
	}
	data := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode collection %q: %w", collection, err)
	}
	return data, nil
}

// Save writes the collection through a temp file and rename, so a crash
// mid-write never leaves a truncated collection behind.
func (g *FileGateway) Save(ctx context.Context, collection string, data map[string]json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode collection %q: %w", collection, err)
	}
	path := g.path(collection)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write collection %q: %w", collection, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace collection %q: %w", collection, err)
	}
	return nil
}

func (g *FileGateway) path(collection string) string {
	return filepath.Join(g.dir, collection+".json")
}
