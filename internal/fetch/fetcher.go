// Package fetch performs rate-limited, cached, retrying outbound HTTP GETs
// for store-listing pages and app-ads.txt documents.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/devx/appads-extractor/internal/cache"
	"github.com/devx/appads-extractor/internal/models"
	"github.com/devx/appads-extractor/internal/observability"
	"github.com/devx/appads-extractor/internal/ratelimit"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultMaxBytes = 20 << 20
	defaultRetries  = 3
	defaultBackoff  = 1 * time.Second
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
}

// Options configures a single fetch call.
type Options struct {
	TTL      time.Duration
	MaxBytes int64
}

// Result is a successful fetch outcome.
type Result struct {
	Body      string
	FromCache bool
}

// Fetcher performs rate-limited, cached, retrying HTTP GETs.
type Fetcher struct {
	client      *http.Client
	cache       *cache.Cache
	limiter     *ratelimit.Limiter
	metrics     observability.MetricsRegistry
	logger      *zap.Logger
	maxRetries  int
	retryBase   time.Duration
	defaultMax  int64
	uaIndex     uint64
}

// New constructs a Fetcher.
func New(client *http.Client, c *cache.Cache, limiter *ratelimit.Limiter, maxRetries int, retryBase time.Duration, maxBytes int64, metrics observability.MetricsRegistry, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if maxRetries <= 0 {
		maxRetries = defaultRetries
	}
	if retryBase <= 0 {
		retryBase = defaultBackoff
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:     client,
		cache:      c,
		limiter:    limiter,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		defaultMax: maxBytes,
	}
}

func (f *Fetcher) nextUserAgent() string {
	idx := atomic.AddUint64(&f.uaIndex, 1)
	return userAgents[int(idx-1)%len(userAgents)]
}

// Fetch performs the fetch contract from spec.md §4.4: cache short-circuit
// with at-most-one concurrent fetch per key, rate-limiter admission,
// rotated-UA GET with retry/backoff, size bound, UTF-8 decode, cache put,
// and success/error reporting to the rate limiter.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, kind models.StoreKind, opts Options) (Result, error) {
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = f.defaultMax
	}

	if f.cache == nil {
		body, err := f.fetchAndReport(ctx, rawURL, kind, maxBytes)
		if err != nil {
			return Result{}, err
		}
		return Result{Body: body}, nil
	}

	fetched := false
	body, err := f.cache.GetOrFetch(ctx, rawURL, func(ctx context.Context) (string, time.Duration, error) {
		fetched = true
		body, err := f.fetchAndReport(ctx, rawURL, kind, maxBytes)
		return body, opts.TTL, err
	})
	if err != nil {
		return Result{}, err
	}

	return Result{Body: body, FromCache: !fetched}, nil
}

// fetchAndReport runs the rate-limited, retrying network fetch and reports
// its outcome to the rate limiter. Only invoked on a cache miss, so the
// rate limiter and its metrics never see a cache hit.
func (f *Fetcher) fetchAndReport(ctx context.Context, rawURL string, kind models.StoreKind, maxBytes int64) (string, error) {
	if f.limiter != nil {
		if _, err := f.limiter.Acquire(ctx, kind); err != nil {
			return "", err
		}
	}

	body, fetchErr := f.fetchWithRetry(ctx, rawURL, kind, maxBytes)
	if fetchErr != nil {
		f.reportOutcome(kind, fetchErr)
		return "", fetchErr
	}

	if f.limiter != nil {
		f.limiter.ReportSuccess(kind)
	}

	return body, nil
}

func (f *Fetcher) reportOutcome(kind models.StoreKind, err error) {
	if f.limiter == nil {
		return
	}
	if fe, ok := err.(*Error); ok && fe.Kind == ErrHTTP {
		f.limiter.ReportError(kind, fe.Status)
		return
	}
	f.limiter.ReportError(kind, 0)
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, rawURL string, kind models.StoreKind, maxBytes int64) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		start := time.Now()
		body, retryAfter, err := f.doOnce(ctx, rawURL, maxBytes)
		f.metrics.RecordFetchLatency(string(kind), time.Since(start))

		if err == nil {
			f.metrics.IncrementFetch(string(kind), "success")
			return body, nil
		}

		lastErr = err
		if attempt == f.maxRetries || !isTransient(err) {
			f.metrics.IncrementFetch(string(kind), "error")
			return "", err
		}

		wait := retryAfter
		if wait <= 0 {
			wait = backoffWithJitter(f.retryBase, attempt)
		}
		f.logger.Debug("retrying fetch", zap.String("url", rawURL), zap.Int("attempt", attempt+1), zap.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		}
	}

	return "", lastErr
}

// doOnce issues a single GET. retryAfter is non-zero only for a 429 response
// carrying a Retry-After header.
func (f *Fetcher) doOnce(ctx context.Context, rawURL string, maxBytes int64) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, newError(ErrNetwork, 0, err.Error())
	}
	req.Header.Set("User-Agent", f.nextUserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, newError(ErrTimeout, 0, err.Error())
		}
		return "", 0, newError(ErrNetwork, 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var retryAfter time.Duration
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		// Drain and discard up to 4 KiB of the body; the error carries only
		// the status line.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", retryAfter, newError(ErrHTTP, resp.StatusCode, resp.Status)
	}

	limited := io.LimitReader(resp.Body, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return "", 0, newError(ErrNetwork, 0, err.Error())
	}
	if int64(len(data)) > maxBytes {
		return "", 0, newError(ErrOversized, 0, fmt.Sprintf("response exceeded %d bytes", maxBytes))
	}

	if !utf8.Valid(data) {
		return "", 0, newError(ErrDecode, 0, "response body is not valid UTF-8")
	}

	return string(data), 0, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		return time.Until(when)
	}
	return 0
}

func backoffWithJitter(base time.Duration, attempt int) time.Duration {
	mult := 1 << attempt
	backoff := base * time.Duration(mult)
	jitter := time.Duration(rand.Int63n(int64(base)))
	return backoff + jitter
}

func isTransient(err error) bool {
	fe, ok := err.(*Error)
	if !ok {
		return false
	}
	switch fe.Kind {
	case ErrNetwork, ErrTimeout:
		return true
	case ErrHTTP:
		if fe.Status == 408 || fe.Status == 429 {
			return true
		}
		return fe.Status >= 500 && fe.Status < 600
	default:
		return false
	}
}

// IsNotFound reports whether err represents an HTTP 404, used by the
// orchestrator to treat a missing app-ads.txt as "not exists" rather than a
// fetch error.
func IsNotFound(err error) bool {
	fe, ok := err.(*Error)
	return ok && fe.Kind == ErrHTTP && fe.Status == http.StatusNotFound
}
