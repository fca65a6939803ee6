// Package store is the durable key/value record layer for settings and saved
// conversation sessions. Values are JSON documents addressed by slash-separated
// keys such as "settings/user_profile.json" or "sessions/<id>.json".
package store

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrNotFound         = errors.New("record not found")
	ErrLoadFailed       = errors.New("load failed")
	ErrSaveFailed       = errors.New("save failed")
)

// Store defines durable record access. Implementations must be safe for
// concurrent use and must not return from Save before the write is durable.
type Store interface {
	// Load returns the value stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save writes value under key, replacing any previous value.
	Save(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key returns ErrNotFound.
	Delete(ctx context.Context, key string) error
	// List returns every key that starts with prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Close releases any resources held by the store.
	Close() error
}
