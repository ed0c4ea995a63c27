// Package lease defines the shared leadership lease record and the storage
// contract replicas use to contend for it.
//
// The lease is the only resource shared between replicas. At most one replica
// is intended to hold it at a time; acquisition must use an exclusive-create
// primitive at the storage layer, never read-then-write.
package lease

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrHeld is returned by Acquire when the lease record already exists.
	ErrHeld = errors.New("lease already held")
	// ErrNotHeld is returned by Get when no lease record exists.
	ErrNotHeld = errors.New("lease not held")
)

// Record is the lease content: the owning replica and its last heartbeat.
// On the wire it is a single "<owner_id>,<unix_timestamp>" line, overwritten
// on each heartbeat.
type Record struct {
	OwnerID       int
	LastHeartbeat time.Time
}

// New builds a record owned by the given replica, heartbeat stamped at now.
func New(ownerID int, now time.Time) Record {
	return Record{OwnerID: ownerID, LastHeartbeat: now}
}

// String renders the record in the shared wire format. The timestamp keeps
// sub-second precision so freshly written records never look stale.
func (r Record) String() string {
	secs := float64(r.LastHeartbeat.UnixNano()) / float64(time.Second)
	return strconv.Itoa(r.OwnerID) + "," + strconv.FormatFloat(secs, 'f', 6, 64)
}

// Parse decodes a record from its wire format. Fractional timestamps are
// accepted.
func Parse(s string) (Record, error) {
	owner, ts, found := strings.Cut(strings.TrimSpace(s), ",")
	if !found {
		return Record{}, fmt.Errorf("malformed lease record %q", s)
	}
	id, err := strconv.Atoi(owner)
	if err != nil {
		return Record{}, fmt.Errorf("malformed lease owner %q: %w", owner, err)
	}
	secs, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return Record{}, fmt.Errorf("malformed lease heartbeat %q: %w", ts, err)
	}
	nanos := int64(math.Round(secs * float64(time.Second)))
	return Record{OwnerID: id, LastHeartbeat: time.Unix(0, nanos)}, nil
}

// Stale reports whether the holder missed its heartbeat window and should be
// treated as dead.
func (r Record) Stale(now time.Time, timeout time.Duration) bool {
	return now.Sub(r.LastHeartbeat) > timeout
}

// Store persists the single shared lease record.
type Store interface {
	// Acquire atomically creates the lease record if absent. It returns
	// ErrHeld when some replica (possibly this one) already holds it.
	Acquire(ctx context.Context, rec Record) error

	// Get reads the current lease record, returning ErrNotHeld when absent.
	Get(ctx context.Context) (Record, error)

	// Refresh overwrites the lease record with a fresh heartbeat.
	Refresh(ctx context.Context, rec Record) error

	// Release deletes the lease record. Releasing an absent lease is not an
	// error.
	Release(ctx context.Context) error
}
