// Package ratelimit implements an adaptive per-store-kind rate limiter.
// Each StoreKind starts at a fixed initial rate and is throttled up on
// sustained success and backed off exponentially on error, with optional
// persistence of per-kind state to Redis so limits survive restarts.
package ratelimit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devx/appads-extractor/internal/db"
	"github.com/devx/appads-extractor/internal/models"
	"github.com/devx/appads-extractor/internal/observability"
)

const (
	minRateDefault = 1.0
	maxRateDefault = 20.0

	successStreakForIncrease = 5
	increaseStep             = 0.1

	persistTTL       = time.Hour
	persistKeyPrefix = "ratelimit:state:"
)

// initialRates mirrors the store-specific defaults; pacing intervals differ
// slightly per kind in the legacy system (e.g. Amazon paces per 1.5s) but all
// are expressed here as a requests/second rate for a uniform acquire loop.
var initialRates = map[models.StoreKind]float64{
	models.StoreGooglePlay: 10.0,
	models.StoreAppStore:   12.0,
	models.StoreAmazon:     8.0 / 1.5,
	models.StoreRoku:       10.0 / 1.2,
	models.StoreSamsung:    8.0 / 1.5,
}

// kindState holds the adaptive rate-limiter state for a single StoreKind.
type kindState struct {
	mu                   sync.Mutex
	currentRate          float64
	lastRequestAt        time.Time
	consecutiveSuccesses int
	consecutiveErrors    int
}

type persistedState struct {
	CurrentRate          float64   `json:"currentRate"`
	LastRequestAt        time.Time `json:"lastRequestAt"`
	ConsecutiveSuccesses int       `json:"consecutiveSuccesses"`
	ConsecutiveErrors    int       `json:"consecutiveErrors"`
}

// Limiter bounds outbound request pacing per StoreKind.
type Limiter struct {
	minRate float64
	maxRate float64

	mu     sync.Mutex
	states map[models.StoreKind]*kindState

	redis   *db.RedisStore
	metrics observability.MetricsRegistry
	logger  *zap.Logger
}

// New constructs a Limiter. redisStore may be nil, in which case per-kind
// state is kept in memory only.
func New(minRate, maxRate float64, redisStore *db.RedisStore, metrics observability.MetricsRegistry, logger *zap.Logger) *Limiter {
	if minRate <= 0 {
		minRate = minRateDefault
	}
	if maxRate <= 0 {
		maxRate = maxRateDefault
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		minRate: minRate,
		maxRate: maxRate,
		states:  make(map[models.StoreKind]*kindState),
		redis:   redisStore,
		metrics: metrics,
		logger:  logger,
	}
}

func (l *Limiter) stateFor(kind models.StoreKind) *kindState {
	l.mu.Lock()
	defer l.mu.Unlock()

	if st, ok := l.states[kind]; ok {
		return st
	}

	st := &kindState{currentRate: l.initialRate(kind)}
	if l.redis != nil {
		if persisted, ok := l.loadPersisted(kind); ok {
			st.currentRate = clamp(persisted.CurrentRate, l.minRate, l.maxRate)
			st.lastRequestAt = persisted.LastRequestAt
			st.consecutiveSuccesses = persisted.ConsecutiveSuccesses
			st.consecutiveErrors = persisted.ConsecutiveErrors
		}
	}
	l.states[kind] = st
	return st
}

func (l *Limiter) initialRate(kind models.StoreKind) float64 {
	if r, ok := initialRates[kind]; ok {
		return clamp(r, l.minRate, l.maxRate)
	}
	return clamp(l.minRate, l.minRate, l.maxRate)
}

// Acquire blocks until the kind's pacing interval has elapsed, then returns
// the current rate in effect. Each caller reserves its own slot by advancing
// lastRequestAt under the lock before sleeping, so concurrent callers for
// the same kind are serialized into successive slots instead of all waking
// on the same stale lastRequestAt and firing in a burst.
func (l *Limiter) Acquire(ctx context.Context, kind models.StoreKind) (float64, error) {
	st := l.stateFor(kind)

	st.mu.Lock()
	interval := time.Duration(float64(time.Second) / st.currentRate)
	reserved := st.lastRequestAt.Add(interval)
	if now := time.Now(); reserved.Before(now) {
		reserved = now
	}
	st.lastRequestAt = reserved
	rate := st.currentRate
	st.mu.Unlock()

	wait := time.Until(reserved)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return rate, ctx.Err()
		}
	}

	l.metrics.SetRateLimiterRate(string(kind), rate)
	return rate, nil
}

// ReportSuccess records a successful request, possibly raising the current rate.
func (l *Limiter) ReportSuccess(kind models.StoreKind) {
	st := l.stateFor(kind)

	st.mu.Lock()
	st.consecutiveErrors = 0
	st.consecutiveSuccesses++
	if st.consecutiveSuccesses >= successStreakForIncrease {
		st.currentRate = clamp(st.currentRate+increaseStep, l.minRate, l.maxRate)
		st.consecutiveSuccesses = 0
	}
	snapshot := persistedState{
		CurrentRate:          st.currentRate,
		LastRequestAt:        st.lastRequestAt,
		ConsecutiveSuccesses: st.consecutiveSuccesses,
		ConsecutiveErrors:    st.consecutiveErrors,
	}
	rate := st.currentRate
	st.mu.Unlock()

	l.metrics.SetRateLimiterRate(string(kind), rate)
	l.persist(kind, snapshot)
}

// ReportError records a failed request and backs off the current rate.
// httpStatus is 0 when the failure was not an HTTP response (network/timeout).
func (l *Limiter) ReportError(kind models.StoreKind, httpStatus int) {
	st := l.stateFor(kind)

	st.mu.Lock()
	st.consecutiveSuccesses = 0
	st.consecutiveErrors++

	factor := 0.5
	if httpStatus == 429 || httpStatus == 403 {
		factor = 0.8
	} else if httpStatus >= 500 && httpStatus < 600 {
		factor = 0.5
	}

	exp := st.consecutiveErrors - 1
	backoffMultiplier := pow2Capped(exp, 5)
	st.currentRate = clamp(st.currentRate*(1-factor*backoffMultiplier), l.minRate, l.maxRate)

	snapshot := persistedState{
		CurrentRate:          st.currentRate,
		LastRequestAt:        st.lastRequestAt,
		ConsecutiveSuccesses: st.consecutiveSuccesses,
		ConsecutiveErrors:    st.consecutiveErrors,
	}
	rate := st.currentRate
	st.mu.Unlock()

	l.metrics.SetRateLimiterRate(string(kind), rate)
	l.persist(kind, snapshot)
}

// pow2Capped returns min(cap, 2^exp) without overflowing for large exp.
func pow2Capped(exp int, cap float64) float64 {
	if exp <= 0 {
		return 1
	}
	v := 1.0
	for i := 0; i < exp; i++ {
		v *= 2
		if v >= cap {
			return cap
		}
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (l *Limiter) persist(kind models.StoreKind, st persistedState) {
	if l.redis == nil {
		return
	}
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.redis.Set(ctx, persistKeyPrefix+string(kind), data, persistTTL); err != nil {
		l.logger.Warn("ratelimit persist failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (l *Limiter) loadPersisted(kind models.StoreKind) (persistedState, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := l.redis.Get(ctx, persistKeyPrefix+string(kind))
	if err != nil {
		if !db.IsNil(err) {
			l.logger.Warn("ratelimit load failed", zap.String("kind", string(kind)), zap.Error(err))
		}
		return persistedState{}, false
	}

	var st persistedState
	if err := json.Unmarshal(raw, &st); err != nil {
		return persistedState{}, false
	}
	return st, true
}
