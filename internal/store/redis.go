package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisGateway persists each collection as a Redis hash (field = record id,
// value = JSON record) under "coord:<collection>".
type RedisGateway struct {
	client *redis.Client
	prefix string
}

// NewRedisGateway connects a gateway to the Redis instance at addr.
func NewRedisGateway(addr string) *RedisGateway {
	return &RedisGateway{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "coord:",
	}
}

// Load reads the whole collection hash. A collection that was never saved
// loads as an empty map.
func (g *RedisGateway) Load(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	fields, err := g.client.HGetAll(ctx, g.prefix+collection).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %q: %w", collection, err)
	}
	data := make(map[string]json.RawMessage, len(fields))
	for id, raw := range fields {
		data[id] = json.RawMessage(raw)
	}
	return data, nil
}

// Save replaces the collection hash with the given records. The delete and
// rewrite run in one transaction so readers never observe a half-written
// collection.
func (g *RedisGateway) Save(ctx context.Context, collection string, data map[string]json.RawMessage) error {
	key := g.prefix + collection
	fields := make(map[string]string, len(data))
	for id, raw := range data {
		fields[id] = string(raw)
	}
	pipe := g.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save collection %q: %w", collection, err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (g *RedisGateway) Close() error {
	return g.client.Close()
}
