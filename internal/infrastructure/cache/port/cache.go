package port

import (
	"context"
	"time"
)

// Cache defines the minimal contract for a key-value cache. Implementations
// must be concurrency-safe and context-aware. Values are strings so the port
// stays free of serialization concerns; the messaging layer uses it for
// derived projections only (unread counts), never as a source of truth.
type Cache interface {
	// Get fetches the value for key, returning ErrMiss on a miss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key with the provided TTL. Zero or negative TTL
	// means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes one or more keys and returns the number removed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Ping verifies connectivity with the cache backend.
	Ping(ctx context.Context) error

	// Close releases any resources held by the cache.
	Close() error
}

// ErrMiss signals a cache miss in a typed way, so callers can tell misses
// apart from transport errors.
var ErrMiss = errMiss{}

type errMiss struct{}

func (e errMiss) Error() string { return "cache: miss" }
