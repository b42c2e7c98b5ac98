// Package cache provides the byte-level caches used to memoize layout
// results.
//
// Three implementations share the [Cache] interface:
//
//   - [NullCache]: never stores anything (caching disabled)
//   - [FileCache]: one JSON file per key under a directory, for the CLI
//   - [RedisCache]: a shared Redis instance, for the HTTP server
//
// Keys are opaque strings; callers usually build them with [Key] so that
// the same logical input always maps to the same entry.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values by key with an optional TTL.
//
// Get reports a miss as (nil, false, nil); errors are reserved for backend
// failures. A ttl of zero means the entry never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
