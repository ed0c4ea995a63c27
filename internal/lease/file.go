package lease

import (
	"context"
	"fmt"
	"os"

	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/lease"
)

// FileStore keeps the lease record in a lock file on a shared filesystem.
// Exclusive-create semantics come from O_CREATE|O_EXCL.
type FileStore struct {
	path string
}

// NewFileStore creates a lease store backed by the lock file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Acquire creates the lock file, failing with ErrHeld when it already exists.
func (s *FileStore) Acquire(ctx context.Context, rec lease.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return lease.ErrHeld
	}
	if err != nil {
		return fmt.Errorf("failed to create lease file: %w", err)
	}
	_, werr := f.WriteString(rec.String())
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("failed to write lease file: %w", werr)
	}
	return cerr
}

// Get reads and parses the lock file.
func (s *FileStore) Get(ctx context.Context) (lease.Record, error) {
	if err := ctx.Err(); err != nil {
		return lease.Record{}, err
	}
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return lease.Record{}, lease.ErrNotHeld
	}
	if err != nil {
		return lease.Record{}, fmt.Errorf("failed to read lease file: %w", err)
	}
	return lease.Parse(string(raw))
}

// Refresh overwrites the lock file with a fresh heartbeat.
func (s *FileStore) Refresh(ctx context.Context, rec lease.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, []byte(rec.String()), 0o644); err != nil {
		return fmt.Errorf("failed to refresh lease file: %w", err)
	}
	return nil
}

// Release removes the lock file. A missing file is not an error.
func (s *FileStore) Release(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lease file: %w", err)
	}
	return nil
}

var _ lease.Store = (*FileStore)(nil)
