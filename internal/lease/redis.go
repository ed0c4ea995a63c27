// Package lease provides the lease store implementations. Acquisition relies
// on an atomic create-if-absent primitive in every backend: SET NX on Redis,
// O_EXCL file creation on disk. Read-then-write acquisition is never used.
package lease

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/lease"
)

const redisLeaseKey = "coord:leader"

// RedisStore keeps the lease record in a single Redis key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects a lease store to the Redis instance at addr.
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    redisLeaseKey,
	}
}

// Acquire creates the lease record with SET NX, which is atomic on the Redis
// side: exactly one of N concurrent acquirers wins.
func (s *RedisStore) Acquire(ctx context.Context, rec lease.Record) error {
	ok, err := s.client.SetNX(ctx, s.key, rec.String(), 0).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !ok {
		return lease.ErrHeld
	}
	return nil
}

// Get reads and parses the current lease record.
func (s *RedisStore) Get(ctx context.Context) (lease.Record, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return lease.Record{}, lease.ErrNotHeld
	}
	if err != nil {
		return lease.Record{}, fmt.Errorf("failed to read lease: %w", err)
	}
	return lease.Parse(raw)
}

// Refresh overwrites the lease record with a fresh heartbeat.
func (s *RedisStore) Refresh(ctx context.Context, rec lease.Record) error {
	if err := s.client.Set(ctx, s.key, rec.String(), 0).Err(); err != nil {
		return fmt.Errorf("failed to refresh lease: %w", err)
	}
	return nil
}

// Release deletes the lease record.
func (s *RedisStore) Release(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ lease.Store = (*RedisStore)(nil)
