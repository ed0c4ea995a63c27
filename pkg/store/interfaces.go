// Package store defines the key-value persistence contract used by the
// coordinator for its durable collections.
package store

import (
	"context"
	"encoding/json"
)

// Collection names persisted through the gateway.
const (
	Users         = "users"
	Channels      = "channels"
	Subscriptions = "subscriptions"
)

// Gateway is the durable key-value store behind the coordinator. Each
// collection maps a string id (or user name) to a JSON-encoded record.
//
// Load returns an empty map, not an error, for a collection that has never
// been saved. Save replaces the whole collection.
type Gateway interface {
	Load(ctx context.Context, collection string) (map[string]json.RawMessage, error)
	Save(ctx context.Context, collection string, data map[string]json.RawMessage) error
}
