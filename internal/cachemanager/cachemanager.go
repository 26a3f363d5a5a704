// Package cachemanager is the caching layer behind bibliographic lookups.
// Records are keyed by their canonical code, so the cache key doubles as
// the fetch argument and stores are plain string-keyed TTL caches.
package cachemanager

import (
	"context"
	"time"
)

const (
	// DefaultExpiration bounds how long an entry lives without a refresh.
	DefaultExpiration = 24 * time.Hour
	// DefaultCleanupInterval is how often expired entries are swept.
	DefaultCleanupInterval = time.Hour
)

// Store is the TTL cache contract consumed by the read-through layer.
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	GetWithRefresh(ctx context.Context, key string, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...string) error
	Flush(ctx context.Context) error
}
