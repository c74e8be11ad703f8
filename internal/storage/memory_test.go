package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Elias8833/webmonetization/internal/models"
)

func newTestStorage(maxAge time.Duration, now time.Time) *MemoryStorage {
	ms := NewMemoryStorage(maxAge, nil)
	ms.now = func() time.Time { return now }
	return ms
}

func TestStoreAndGet(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ms := newTestStorage(time.Hour, now)

	content := &models.ExclusiveContent{ID: "a", CreatedAt: now}
	require.NoError(t, ms.Store(content))

	got, err := ms.Get("a")
	require.NoError(t, err)
	assert.Same(t, content, got)

	assert.ErrorIs(t, ms.Store(&models.ExclusiveContent{ID: "a", CreatedAt: now}), ErrExists)

	_, err = ms.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	now := time.Now()
	ms := newTestStorage(time.Hour, now)
	require.NoError(t, ms.Store(&models.ExclusiveContent{ID: "a", CreatedAt: now}))

	require.NoError(t, ms.Delete("a"))
	assert.ErrorIs(t, ms.Delete("a"), ErrNotFound)

	_, err := ms.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ms := newTestStorage(time.Hour, now)

	require.NoError(t, ms.Store(&models.ExclusiveContent{ID: "old", CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, ms.Store(&models.ExclusiveContent{ID: "new", CreatedAt: now.Add(-time.Minute)}))

	_, err := ms.Get("old")
	assert.ErrorIs(t, err, ErrNotFound)

	total, expired := ms.Stats()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, expired)

	assert.Equal(t, 1, ms.Cleanup())

	total, expired = ms.Stats()
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, expired)

	_, err = ms.Get("new")
	assert.NoError(t, err)
}

func TestZeroMaxAgeNeverExpires(t *testing.T) {
	now := time.Now()
	ms := newTestStorage(0, now)
	require.NoError(t, ms.Store(&models.ExclusiveContent{ID: "a", CreatedAt: now.Add(-24 * 365 * time.Hour)}))

	assert.Equal(t, 0, ms.Cleanup())
	_, err := ms.Get("a")
	assert.NoError(t, err)
}

func TestCleanupRoutine(t *testing.T) {
	ms := NewMemoryStorage(time.Millisecond, nil)
	require.NoError(t, ms.Store(&models.ExclusiveContent{ID: "a", CreatedAt: time.Now().Add(-time.Second)}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ms.StartCleanupRoutine(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		total, _ := ms.Stats()
		return total == 0
	}, time.Second, 5*time.Millisecond)
}

func TestConcurrentAccess(t *testing.T) {
	ms := NewMemoryStorage(time.Hour, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("content-%d", i)
			assert.NoError(t, ms.Store(&models.ExclusiveContent{ID: id, CreatedAt: time.Now()}))
			_, err := ms.Get(id)
			assert.NoError(t, err)
			ms.Stats()
		}(i)
	}
	wg.Wait()

	total, _ := ms.Stats()
	assert.Equal(t, 50, total)
}

func TestLive(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ms := newTestStorage(time.Hour, now)

	require.NoError(t, ms.Store(&models.ExclusiveContent{ID: "old", CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, ms.Store(&models.ExclusiveContent{ID: "new", CreatedAt: now}))
	assert.Equal(t, 1, ms.Live())

	ms.now = func() time.Time { return now.Add(90 * time.Minute) }
	assert.Equal(t, 0, ms.Live())

	assert.Equal(t, 2, ms.Cleanup())
	total, expired := ms.Stats()
	assert.Equal(t, 0, total)
	assert.Equal(t, 0, expired)
	assert.Equal(t, 0, ms.Live())
}
