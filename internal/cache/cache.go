// Package cache implements the two-tier content-addressed cache: a
// size-bounded in-memory LRU (L1) backed by either Redis or a local
// atomic-write file store (L2). GetOrFetch guarantees at-most-one
// concurrent fetch per key, fanning the result out to every waiter.
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devx/appads-extractor/internal/db"
	"github.com/devx/appads-extractor/internal/observability"
)

// Stats tallies cache activity for a request/batch's telemetry.
type Stats struct {
	Hits      int64
	Misses    int64
	Writes    int64
	Evictions int64
}

// Cache is the two-tier store described in spec.md §4.3.
type Cache struct {
	l1  *lru
	l2  l2Backend
	ttl time.Duration

	logger  *zap.Logger
	metrics observability.MetricsRegistry

	hits, misses, writes int64
	statsMu              sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]*pendingFetch
}

type pendingFetch struct {
	done  chan struct{}
	value string
	err   error
}

// l2Backend abstracts the durable tier: either Redis or the local file store.
type l2Backend interface {
	get(ctx context.Context, key string) (string, bool, error)
	put(ctx context.Context, key, value string, ttl time.Duration) error
}

// New constructs a Cache. When redisStore is non-nil it backs L2; otherwise
// a local file store rooted at cacheDir is used.
func New(capacity int, redisStore *db.RedisStore, cacheDir string, defaultTTL time.Duration, metrics observability.MetricsRegistry, logger *zap.Logger) *Cache {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var backend l2Backend
	if redisStore != nil {
		backend = &redisTier{store: redisStore}
	} else {
		backend = &fileTier{fs: newFileStore(cacheDir)}
	}

	return &Cache{
		l1:      newLRU(capacity),
		l2:      backend,
		ttl:     defaultTTL,
		logger:  logger,
		metrics: metrics,
		pending: make(map[string]*pendingFetch),
	}
}

// Get checks L1 then L2, promoting an L2 hit into L1. Any backend error
// degrades to a miss rather than failing the caller.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if v, ok := c.l1.get(key); ok {
		c.recordHit("l1")
		return v, true
	}

	v, ok, err := c.l2.get(ctx, key)
	if err != nil {
		c.logger.Warn("cache l2 get failed, degrading to miss", zap.String("key", key), zap.Error(err))
		c.recordMiss()
		return "", false
	}
	if !ok {
		c.recordMiss()
		return "", false
	}

	c.l1.put(key, v, c.ttl)
	c.recordHit("l2")
	return v, true
}

// Put writes through both tiers. A failure on L2 is logged but not fatal.
func (c *Cache) Put(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.l1.put(key, value, ttl)
	if err := c.l2.put(ctx, key, value, ttl); err != nil {
		c.logger.Warn("cache l2 put failed", zap.String("key", key), zap.Error(err))
	}
	c.recordWrite()
}

// FetchFunc produces a value to cache on a miss.
type FetchFunc func(ctx context.Context) (string, time.Duration, error)

// GetOrFetch deduplicates concurrent misses for the same key: only one
// caller invokes fetchFn; all concurrent callers receive its result. A
// failure for one caller does not poison other callers beyond this request.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetchFn FetchFunc) (string, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}

	c.pendingMu.Lock()
	if pf, ok := c.pending[key]; ok {
		c.pendingMu.Unlock()
		select {
		case <-pf.done:
			return pf.value, pf.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	pf := &pendingFetch{done: make(chan struct{})}
	c.pending[key] = pf
	c.pendingMu.Unlock()

	value, ttl, err := fetchFn(ctx)

	c.pendingMu.Lock()
	delete(c.pending, key)
	c.pendingMu.Unlock()

	if err == nil {
		c.Put(ctx, key, value, ttl)
	}

	pf.value = value
	pf.err = err
	close(pf.done)
	return value, err
}

// Snapshot returns the current cache statistics.
func (c *Cache) Snapshot() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Writes:    c.writes,
		Evictions: c.l1.evictionCount(),
	}
}

func (c *Cache) recordHit(tier string) {
	c.statsMu.Lock()
	c.hits++
	c.statsMu.Unlock()
	c.metrics.IncrementCacheOp(tier, "hit")
}

func (c *Cache) recordMiss() {
	c.statsMu.Lock()
	c.misses++
	c.statsMu.Unlock()
	c.metrics.IncrementCacheOp("l2", "miss")
}

func (c *Cache) recordWrite() {
	c.statsMu.Lock()
	c.writes++
	c.statsMu.Unlock()
	c.metrics.IncrementCacheOp("l1+l2", "write")
}
