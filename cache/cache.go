// Package cache persists the session token between process runs.
//
// Backends implement [Cache] and report every failure. [TokenCache] wraps a
// backend at the boundary the flows use: read failures degrade to a miss,
// writes are retried with exponential backoff, and nothing is ever returned
// to the caller as an error.
//
// # Backends
//
//   - [Memory]: process-local map, used by tests and ephemeral clients.
//   - [Redis]: shared store with a versioned binary record.
//   - [SQLite]: durable single-file store for on-device persistence.
package cache

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable wraps backend I/O failures.
	ErrUnavailable = errors.New("cache: backend unavailable")
	// ErrCorrupt is returned when a stored entry cannot be decoded.
	ErrCorrupt = errors.New("cache: corrupt entry")
	// ErrValueTooLarge is returned for values a backend refuses to store.
	ErrValueTooLarge = errors.New("cache: value too large")
)

// Cache is the raw key/value contract every backend implements.
type Cache interface {
	// Get returns the value for key. A missing key is ("", false, nil).
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
