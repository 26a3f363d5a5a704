package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadThrough_MissFetchesAndStores(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	calls := 0
	rt := NewReadThrough(store, func(ctx context.Context, code string) (bibRecord, error) {
		calls++
		return bibRecord{Title: "fetched " + code}, nil
	}, time.Minute, false)

	rec, err := rt.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "fetched key-1", rec.Title)
	assert.Equal(t, 1, calls)

	// Second read comes from the store.
	rec, err = rt.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "fetched key-1", rec.Title)
	assert.Equal(t, 1, calls)
}

func TestReadThrough_Bypass(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	calls := 0
	rt := NewReadThrough(store, func(ctx context.Context, code string) (bibRecord, error) {
		calls++
		return bibRecord{}, nil
	}, time.Minute, true)

	for i := 0; i < 3; i++ {
		_, err := rt.Get(ctx, "key-1")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls, "bypass mode always fetches")

	_, found := store.Get(ctx, "key-1")
	assert.False(t, found, "bypass mode never stores")
}

func TestReadThrough_FetchErrorNotCached(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	boom := errors.New("upstream down")
	failing := true
	rt := NewReadThrough(store, func(ctx context.Context, code string) (bibRecord, error) {
		if failing {
			return bibRecord{}, boom
		}
		return bibRecord{Title: "recovered"}, nil
	}, time.Minute, false)

	_, err := rt.Get(ctx, "key-1")
	require.ErrorIs(t, err, boom)

	failing = false
	rec, err := rt.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "recovered", rec.Title, "failure was not stored")
}

func TestReadThrough_GetKeepAlive(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	calls := 0
	rt := NewReadThrough(store, func(ctx context.Context, code string) (bibRecord, error) {
		calls++
		return bibRecord{Title: "fetched"}, nil
	}, 30*time.Millisecond, false)

	_, err := rt.GetKeepAlive(ctx, "key-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		time.Sleep(20 * time.Millisecond)
		_, err := rt.GetKeepAlive(ctx, "key-1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls, "keep-alive reads never refetch")
}
