package pipeline

import "errors"

// Sentinel errors for nil-dependency misconfiguration, in the teacher's
// idiom of small sentinel values rather than a custom error package.
var (
	ErrNilCache   = errors.New("pipeline: cache dependency is nil")
	ErrNilFetcher = errors.New("pipeline: fetcher dependency is nil")
	ErrNilLimiter = errors.New("pipeline: rate limiter dependency is nil")
	ErrNilPool    = errors.New("pipeline: worker pool dependency is nil")
)

// ErrorKind classifies a per-bundle failure per spec.md §7's taxonomy.
type ErrorKind string

const (
	ErrUnsupportedBundle  ErrorKind = "UnsupportedBundle"
	ErrFetchError         ErrorKind = "FetchError"
	ErrDomainNotFound     ErrorKind = "DomainNotFound"
	ErrWorkerTimeout      ErrorKind = "WorkerTimeout"
	ErrWorkerMemoryExceed ErrorKind = "WorkerMemoryExceeded"
	ErrInternal           ErrorKind = "Internal"
)
