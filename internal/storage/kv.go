// Package storage holds the small contracts shared by the storage backends.
package storage

import "context"

// KV is a durable string key/value medium. Values are replaced whole on Set.
type KV interface {
	// Get returns the value for key; ok is false when nothing is stored.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key in a single write.
	Set(ctx context.Context, key, value string) error
}
