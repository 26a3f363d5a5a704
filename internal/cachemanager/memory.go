package cachemanager

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/fieldcat/internal/log"
)

// MemoryStore is an in-process Store backed by go-cache. useCase labels
// the store in log lines so overlapping caches stay distinguishable.
type MemoryStore[V any] struct {
	useCase string
	cache   *gocache.Cache
}

// NewMemoryStore creates a store sweeping expired entries every
// cleanupInterval.
func NewMemoryStore[V any](useCase string, defaultExpiration, cleanupInterval time.Duration) *MemoryStore[V] {
	return &MemoryStore[V]{
		useCase: useCase,
		cache:   gocache.New(defaultExpiration, cleanupInterval),
	}
}

// Get retrieves the entry for key, reporting whether it was present.
func (s *MemoryStore[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V

	value, found := s.cache.Get(key)
	if !found {
		return zero, false
	}

	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "useCase", s.useCase, "key", key)

		return zero, false
	}

	log.Debug(log.CatCache, "cache hit", "useCase", s.useCase, "key", key)

	return v, true
}

// GetWithRefresh retrieves the entry for key and, when present, restarts
// its TTL by writing it back.
func (s *MemoryStore[V]) GetWithRefresh(ctx context.Context, key string, ttl time.Duration) (V, bool) {
	value, found := s.Get(ctx, key)
	if !found {
		return value, found
	}

	s.Set(ctx, key, value, ttl)

	return value, found
}

// Set stores value under key for ttl.
func (s *MemoryStore[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	s.cache.Set(key, value, ttl)
}

// Delete removes the given keys.
func (s *MemoryStore[V]) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		s.cache.Delete(key)
	}

	return nil
}

// Flush drops every cached entry.
func (s *MemoryStore[V]) Flush(ctx context.Context) error {
	s.cache.Flush()

	return nil
}
