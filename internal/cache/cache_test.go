package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devx/appads-extractor/internal/db"
)

func newFileTestCache(t *testing.T) *Cache {
	t.Helper()
	dir := t.TempDir()
	return New(10, nil, dir, time.Minute, nil, nil)
}

func newRedisTestCache(t *testing.T) *Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := db.InitRedis(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return New(10, store, "", time.Minute, nil, nil)
}

func TestCachePutThenGet_FileBackend(t *testing.T) {
	c := newFileTestCache(t)
	ctx := context.Background()

	c.Put(ctx, "key1", "hello world", time.Minute)
	v, ok := c.Get(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, "hello world", v)
}

func TestCachePutThenGet_RedisBackend(t *testing.T) {
	c := newRedisTestCache(t)
	ctx := context.Background()

	c.Put(ctx, "key1", "hello world", time.Minute)
	v, ok := c.Get(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, "hello world", v)
}

func TestCacheL2PromotesIntoL1(t *testing.T) {
	c := newFileTestCache(t)
	ctx := context.Background()

	c.Put(ctx, "key1", "payload", time.Minute)
	// Clear L1 directly to simulate an L1 eviction while L2 still holds it.
	c.l1 = newLRU(10)

	v, ok := c.Get(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, "payload", v)

	// Now it should be back in L1.
	v2, ok2 := c.l1.get("key1")
	require.True(t, ok2)
	assert.Equal(t, "payload", v2)
}

func TestCacheMissIncrementsStats(t *testing.T) {
	c := newFileTestCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "nope")
	assert.False(t, ok)

	stats := c.Snapshot()
	assert.Equal(t, int64(1), stats.Misses)
}

func TestGetOrFetchDedupesConcurrentMisses(t *testing.T) {
	c := newFileTestCache(t)
	ctx := context.Background()

	var calls int64
	fetch := func(ctx context.Context) (string, time.Duration, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return "fetched", time.Minute, nil
	}

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := c.GetOrFetch(ctx, "dedupe-key", fetch)
			require.NoError(t, err)
			results[idx] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	for _, r := range results {
		assert.Equal(t, "fetched", r)
	}
}

func TestGetOrFetchDoesNotPoisonLaterCallsOnError(t *testing.T) {
	c := newFileTestCache(t)
	ctx := context.Background()

	first := true
	fetch := func(ctx context.Context) (string, time.Duration, error) {
		if first {
			first = false
			return "", 0, errors.New("boom")
		}
		return "ok", time.Minute, nil
	}

	_, err := c.GetOrFetch(ctx, "poison-key", fetch)
	require.Error(t, err)

	v, err := c.GetOrFetch(ctx, "poison-key", fetch)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestLRUEvictsOldestBeyondCapacity(t *testing.T) {
	l := newLRU(2)
	l.put("a", "1", time.Minute)
	l.put("b", "2", time.Minute)
	l.put("c", "3", time.Minute)

	_, ok := l.get("a")
	assert.False(t, ok)
	_, ok = l.get("c")
	assert.True(t, ok)
	assert.Equal(t, int64(1), l.evictionCount())
}
