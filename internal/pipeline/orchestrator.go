package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/devx/appads-extractor/internal/appads"
	"github.com/devx/appads-extractor/internal/cache"
	"github.com/devx/appads-extractor/internal/fetch"
	"github.com/devx/appads-extractor/internal/models"
	"github.com/devx/appads-extractor/internal/observability"
)

// Config tunes a single Orchestrator instance.
type Config struct {
	Concurrency      int
	ListingTTL       time.Duration
	AppAdsTTL        time.Duration
	TaskTimeout      time.Duration
	MaxContentBytes  int
	MemThresholds    appads.MemoryThresholds
	CapBounds        appads.ResultCapBounds
}

// Orchestrator schedules bundles with bounded concurrency and assembles
// either a batch response or a stream of per-bundle records.
type Orchestrator struct {
	cache   *cache.Cache
	fetcher *fetch.Fetcher
	pool    *appads.Pool
	metrics observability.MetricsRegistry
	logger  *zap.Logger

	concurrency     int
	listingTTL      time.Duration
	appAdsTTL       time.Duration
	taskTimeout     time.Duration
	maxContentBytes int
	memThresholds   appads.MemoryThresholds
	capBounds       appads.ResultCapBounds
}

// New constructs an Orchestrator. Returns an error if any required
// dependency is nil.
func New(c *cache.Cache, fetcher *fetch.Fetcher, pool *appads.Pool, cfg Config, metrics observability.MetricsRegistry, logger *zap.Logger) (*Orchestrator, error) {
	if c == nil {
		return nil, ErrNilCache
	}
	if fetcher == nil {
		return nil, ErrNilFetcher
	}
	if pool == nil {
		return nil, ErrNilPool
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}

	return &Orchestrator{
		cache:           c,
		fetcher:         fetcher,
		pool:            pool,
		metrics:         metrics,
		logger:          logger,
		concurrency:     cfg.Concurrency,
		listingTTL:      cfg.ListingTTL,
		appAdsTTL:       cfg.AppAdsTTL,
		taskTimeout:     cfg.TaskTimeout,
		maxContentBytes: cfg.MaxContentBytes,
		memThresholds:   cfg.MemThresholds,
		capBounds:       cfg.CapBounds,
	}, nil
}

// RunBatch processes bundleIds with bounded concurrency and returns results
// in input order (spec.md §4.7 batch mode).
func (o *Orchestrator) RunBatch(ctx context.Context, bundleIds []string, query models.SearchQuery) models.BatchResponse {
	start := time.Now()
	results := make([]models.BundleResult, len(bundleIds))

	sem := semaphore.NewWeighted(int64(o.concurrency))
	var wg sync.WaitGroup

	for i, id := range bundleIds {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = models.BundleResult{BundleId: id, Success: false, ErrorKind: string(ErrInternal), Error: "cancelled"}
			continue
		}
		wg.Add(1)
		go func(idx int, bundleId string) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx] = o.processBundle(ctx, bundleId, query)
		}(i, id)
	}
	wg.Wait()

	resp := models.BatchResponse{
		Success:        true,
		Results:        results,
		TotalProcessed: len(results),
		ProcessingTime: time.Since(start).String(),
	}
	for _, r := range results {
		if r.Success {
			resp.SuccessCount++
		} else {
			resp.ErrorCount++
		}
	}
	stats := o.cache.Snapshot()
	resp.CacheStats = models.CacheStats{Hits: stats.Hits, Misses: stats.Misses, Writes: stats.Writes, Evictions: stats.Evictions}

	o.metrics.RecordBatchDuration("batch", time.Since(start))
	return resp
}

// StreamBundles processes bundleIds with bounded concurrency and emits each
// BundleResult on the returned channel in completion order (spec.md §4.7
// stream mode). The channel is closed once every bundle has completed or
// ctx is cancelled. summary is only valid after the channel closes.
func (o *Orchestrator) StreamBundles(ctx context.Context, bundleIds []string, query models.SearchQuery) (<-chan models.BundleResult, func() models.BatchResponse) {
	start := time.Now()
	out := make(chan models.BundleResult, len(bundleIds))

	var successCount, errorCount int
	var counterMu sync.Mutex

	go func() {
		defer close(out)

		sem := semaphore.NewWeighted(int64(o.concurrency))
		var wg sync.WaitGroup

		for _, id := range bundleIds {
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			wg.Add(1)
			go func(bundleId string) {
				defer wg.Done()
				defer sem.Release(1)

				result := o.processBundle(ctx, bundleId, query)

				counterMu.Lock()
				if result.Success {
					successCount++
				} else {
					errorCount++
				}
				counterMu.Unlock()

				select {
				case out <- result:
				case <-ctx.Done():
				}
			}(id)
		}
		wg.Wait()
	}()

	summary := func() models.BatchResponse {
		counterMu.Lock()
		defer counterMu.Unlock()
		stats := o.cache.Snapshot()
		resp := models.BatchResponse{
			Success:        true,
			TotalProcessed: successCount + errorCount,
			SuccessCount:   successCount,
			ErrorCount:     errorCount,
			ProcessingTime: time.Since(start).String(),
			CacheStats:     models.CacheStats{Hits: stats.Hits, Misses: stats.Misses, Writes: stats.Writes, Evictions: stats.Evictions},
		}
		o.metrics.RecordBatchDuration("stream", time.Since(start))
		return resp
	}

	return out, summary
}
