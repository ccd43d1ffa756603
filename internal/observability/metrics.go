package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extractor_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// bundles processed, labelled by store kind and outcome (success/error)
	BundleCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_bundles_total",
			Help: "Total bundles processed",
		},
		[]string{"store_kind", "outcome"},
	)

	// outbound fetches, labelled by store kind and outcome
	FetchCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_fetch_total",
			Help: "Total outbound fetch attempts",
		},
		[]string{"store_kind", "outcome"},
	)

	// outbound fetch latency
	FetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extractor_fetch_duration_seconds",
			Help:    "Duration of outbound fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store_kind"},
	)

	// cache operations per tier (l1, l2, l1+l2) and op (hit/miss/write)
	CacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_cache_ops_total",
			Help: "Total cache operations",
		},
		[]string{"tier", "op"},
	)

	// current adaptive rate per store kind
	RateLimiterRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "extractor_ratelimit_current_rate",
			Help: "Current adaptive rate (requests/second) per store kind",
		},
		[]string{"store_kind"},
	)

	// worker pool queue depth
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "extractor_worker_queue_depth",
			Help: "Number of tasks waiting in the analyzer worker pool queue",
		},
	)

	// worker pool active worker count
	WorkerActiveCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "extractor_worker_active_count",
			Help: "Number of active analyzer workers",
		},
	)

	// analyzer task duration
	AnalyzerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "extractor_analyzer_duration_seconds",
			Help:    "Duration of app-ads.txt analyzer tasks",
			Buckets: prometheus.DefBuckets,
		},
	)

	// batch/stream request duration, labelled by mode
	BatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extractor_batch_duration_seconds",
			Help:    "Duration of an entire batch or stream request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		BundleCount,
		FetchCount,
		FetchLatency,
		CacheOps,
		RateLimiterRate,
		WorkerQueueDepth,
		WorkerActiveCount,
		AnalyzerDuration,
		BatchDuration,
	)
}
