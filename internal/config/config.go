package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServiceName  string

	RedisEnabled bool
	RedisAddr    string
	CacheDir     string

	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64

	// Batch / request limits
	MaxBundleIDs   int
	MaxSearchTerms int
	MaxBodyBytes   int64

	// Per-request deadlines
	BatchDeadline  time.Duration
	StreamDeadline time.Duration

	// Cache TTLs and L1 sizing
	ListingCacheTTL time.Duration
	AppAdsCacheTTL  time.Duration
	L1CacheCapacity int

	// Fetcher
	FetchTimeout     time.Duration
	FetchMaxBytes    int64
	FetchMaxRetries  int
	FetchRetryBase   time.Duration
	FetchPerHostConn int

	// Rate limiter bounds (requests/second)
	MinRate float64
	MaxRate float64

	// Worker pool
	WorkerMinCount      int
	WorkerMaxCount      int
	WorkerTaskTimeout   time.Duration
	WorkerMaxIdleTime   time.Duration
	WorkerMemWarnMB     int
	WorkerMemHighMB     int
	WorkerMemCriticalMB int

	// Search result caps
	SearchResultCapMin int
	SearchResultCapMax int
	SearchResultCapDef int

	// Orchestrator bounded concurrency; 0 derives from worker pool size x 2
	OrchestratorConcurrency int
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8787")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "app-ads-extractor")

	cfg.RedisEnabled = envBool("REDIS_ENABLED", false)
	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	cfg.CacheDir = getenv("CACHE_DIR", "./data/cache")

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	cfg.MaxBundleIDs = envInt("MAX_BUNDLE_IDS", 200)
	cfg.MaxSearchTerms = envInt("MAX_SEARCH_TERMS", 5)
	cfg.MaxBodyBytes = int64(envInt("MAX_BODY_BYTES", 1<<20)) // 1 MiB

	cfg.BatchDeadline = envDuration("BATCH_DEADLINE", 2*time.Minute)
	cfg.StreamDeadline = envDuration("STREAM_DEADLINE", 5*time.Minute)

	cfg.ListingCacheTTL = envDuration("LISTING_CACHE_TTL", 6*time.Hour)
	cfg.AppAdsCacheTTL = envDuration("APPADS_CACHE_TTL", 30*time.Minute)
	cfg.L1CacheCapacity = envInt("L1_CACHE_CAPACITY", 2000)

	cfg.FetchTimeout = envDuration("FETCH_TIMEOUT", 15*time.Second)
	cfg.FetchMaxBytes = int64(envInt("FETCH_MAX_BYTES", 20<<20)) // 20 MiB
	cfg.FetchMaxRetries = envInt("FETCH_MAX_RETRIES", 3)
	cfg.FetchRetryBase = envDuration("FETCH_RETRY_BASE", 1*time.Second)
	cfg.FetchPerHostConn = envInt("FETCH_PER_HOST_CONN", 50)

	cfg.MinRate = envFloat("RATELIMIT_MIN_RATE", 1.0)
	cfg.MaxRate = envFloat("RATELIMIT_MAX_RATE", 20.0)

	cfg.WorkerMinCount = envInt("WORKER_MIN_COUNT", 2)
	cfg.WorkerMaxCount = envInt("WORKER_MAX_COUNT", 8)
	cfg.WorkerTaskTimeout = envDuration("WORKER_TASK_TIMEOUT", 30*time.Second)
	cfg.WorkerMaxIdleTime = envDuration("WORKER_MAX_IDLE_TIME", 2*time.Minute)
	cfg.WorkerMemWarnMB = envInt("WORKER_MEM_WARN_MB", 150)
	cfg.WorkerMemHighMB = envInt("WORKER_MEM_HIGH_MB", 250)
	cfg.WorkerMemCriticalMB = envInt("WORKER_MEM_CRITICAL_MB", 350)

	cfg.SearchResultCapMin = envInt("SEARCH_RESULT_CAP_MIN", 500)
	cfg.SearchResultCapMax = envInt("SEARCH_RESULT_CAP_MAX", 2000)
	cfg.SearchResultCapDef = envInt("SEARCH_RESULT_CAP_DEFAULT", 1000)

	cfg.OrchestratorConcurrency = envInt("ORCHESTRATOR_CONCURRENCY", 0)

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}
