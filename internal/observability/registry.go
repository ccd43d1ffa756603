package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics.
// This replaces direct access to global Prometheus metrics with dependency injection.
type MetricsRegistry interface {
	// HTTP request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Bundle outcome metrics
	IncrementBundle(storeKind, outcome string)

	// Fetch metrics
	IncrementFetch(storeKind, outcome string)
	RecordFetchLatency(storeKind string, duration time.Duration)

	// Cache metrics
	IncrementCacheOp(tier, op string)

	// Rate limiter metrics
	SetRateLimiterRate(storeKind string, rate float64)

	// Worker pool metrics
	SetWorkerQueueDepth(depth int)
	SetWorkerActiveCount(count int)
	RecordAnalyzerDuration(duration time.Duration)

	// Batch/stream metrics
	RecordBatchDuration(mode string, duration time.Duration)
}

// PrometheusRegistry implements MetricsRegistry using the package's global Prometheus metrics.
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry.
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementBundle(storeKind, outcome string) {
	BundleCount.WithLabelValues(storeKind, outcome).Inc()
}

func (r *PrometheusRegistry) IncrementFetch(storeKind, outcome string) {
	FetchCount.WithLabelValues(storeKind, outcome).Inc()
}

func (r *PrometheusRegistry) RecordFetchLatency(storeKind string, duration time.Duration) {
	FetchLatency.WithLabelValues(storeKind).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementCacheOp(tier, op string) {
	CacheOps.WithLabelValues(tier, op).Inc()
}

func (r *PrometheusRegistry) SetRateLimiterRate(storeKind string, rate float64) {
	RateLimiterRate.WithLabelValues(storeKind).Set(rate)
}

func (r *PrometheusRegistry) SetWorkerQueueDepth(depth int) {
	WorkerQueueDepth.Set(float64(depth))
}

func (r *PrometheusRegistry) SetWorkerActiveCount(count int) {
	WorkerActiveCount.Set(float64(count))
}

func (r *PrometheusRegistry) RecordAnalyzerDuration(duration time.Duration) {
	AnalyzerDuration.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) RecordBatchDuration(mode string, duration time.Duration) {
	BatchDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// NoOpRegistry implements MetricsRegistry with no-op methods, for tests.
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry.
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementBundle(storeKind, outcome string)                            {}
func (r *NoOpRegistry) IncrementFetch(storeKind, outcome string)                             {}
func (r *NoOpRegistry) RecordFetchLatency(storeKind string, duration time.Duration)          {}
func (r *NoOpRegistry) IncrementCacheOp(tier, op string)                                     {}
func (r *NoOpRegistry) SetRateLimiterRate(storeKind string, rate float64)                    {}
func (r *NoOpRegistry) SetWorkerQueueDepth(depth int)                                         {}
func (r *NoOpRegistry) SetWorkerActiveCount(count int)                                        {}
func (r *NoOpRegistry) RecordAnalyzerDuration(duration time.Duration)                         {}
func (r *NoOpRegistry) RecordBatchDuration(mode string, duration time.Duration)               {}
