package counters

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAcquireCeiling(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.TryAcquire(ctx, "d1", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = s.TryAcquire(ctx, "d1", 2)
	assert.True(t, ok)

	ok, _ = s.TryAcquire(ctx, "d1", 2)
	assert.False(t, ok, "third acquire must be rejected")

	n, _ := s.ActiveRuns(ctx, "d1")
	assert.Equal(t, 2, n, "rejected acquire must not mutate state")

	ok, _ = s.TryAcquire(ctx, "d2", 2)
	assert.True(t, ok, "ceiling is per domain")
}

func TestMemoryStoreInvalidLimit(t *testing.T) {
	_, err := NewMemoryStore().TryAcquire(context.Background(), "d1", 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestMemoryStoreReleaseFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Release(ctx, "unknown"))
	_, _ = s.TryAcquire(ctx, "d1", 2)
	require.NoError(t, s.Release(ctx, "d1"))
	require.NoError(t, s.Release(ctx, "d1"))

	n, _ := s.ActiveRuns(ctx, "d1")
	assert.Equal(t, 0, n)
}

func TestMemoryStoreConcurrentAcquireNeverExceedsCeiling(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.TryAcquire(ctx, "d1", 2); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, granted)
}

func TestMemoryStoreTimeouts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.IncrementTimeouts(ctx, "d1")
		}()
	}
	wg.Wait()

	n, err := s.Timeouts(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 20, n, "no lost updates")

	require.NoError(t, s.ResetTimeouts(ctx))
	n, _ = s.Timeouts(ctx, "d1")
	assert.Equal(t, 0, n)
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, _ = s.TryAcquire(ctx, "busy", 2)
	_, _ = s.TryAcquire(ctx, "idle", 2)
	_ = s.Release(ctx, "idle")
	_, _ = s.IncrementTimeouts(ctx, "slow")

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, s.Len())
}
