package cachemanager

import (
	"context"
	"time"
)

// ReadThrough answers keyed reads from the store, falling back to fetch on
// a miss and storing what it fetched. Fetch failures are never stored. In
// bypass mode every read goes to fetch and the store is left untouched,
// for callers that must see live data.
type ReadThrough[V any] struct {
	store  Store[V]
	fetch  func(ctx context.Context, key string) (V, error)
	ttl    time.Duration
	bypass bool
}

// NewReadThrough wraps store with fetch. Entries fetched on a miss are
// kept for ttl.
func NewReadThrough[V any](store Store[V], fetch func(ctx context.Context, key string) (V, error), ttl time.Duration, bypass bool) *ReadThrough[V] {
	return &ReadThrough[V]{
		store:  store,
		fetch:  fetch,
		ttl:    ttl,
		bypass: bypass,
	}
}

// Get returns the value for key, fetching it on a cache miss.
func (r *ReadThrough[V]) Get(ctx context.Context, key string) (V, error) {
	if r.bypass {
		return r.fetch(ctx, key)
	}

	if value, ok := r.store.Get(ctx, key); ok {
		return value, nil
	}

	value, err := r.fetch(ctx, key)
	if err != nil {
		return value, err
	}

	r.store.Set(ctx, key, value, r.ttl)

	return value, nil
}

// GetKeepAlive behaves like Get but restarts the TTL of an entry it finds,
// so repeatedly read keys stay cached.
func (r *ReadThrough[V]) GetKeepAlive(ctx context.Context, key string) (V, error) {
	if r.bypass {
		return r.fetch(ctx, key)
	}

	if value, ok := r.store.GetWithRefresh(ctx, key, r.ttl); ok {
		return value, nil
	}

	value, err := r.fetch(ctx, key)
	if err != nil {
		return value, err
	}

	r.store.Set(ctx, key, value, r.ttl)

	return value, nil
}
