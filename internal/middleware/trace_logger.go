package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// loggerKey is the context key for the logger
type loggerKey struct{}

// WithTraceLogger returns middleware that stamps every request with a
// batch_id (one request to a batch/stream/export endpoint is one batch) and
// folds in trace_id/span_id when a span is present, then stores the
// resulting logger in the request context for handlers to retrieve via
// LoggerFromRequest.
func WithTraceLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scoped := logger.With(zap.String("batch_id", uuid.New().String()))

			if span := trace.SpanFromContext(r.Context()); span.SpanContext().IsValid() {
				scoped = scoped.With(
					zap.String("trace_id", span.SpanContext().TraceID().String()),
					zap.String("span_id", span.SpanContext().SpanID().String()),
				)
			}

			ctx := context.WithValue(r.Context(), loggerKey{}, scoped)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the logger from context
// If no logger is found, returns the provided fallback logger
func LoggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return logger
	}
	// If no logger in context, try to add trace ID from span
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return fallback.With(
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return fallback
}

// LoggerFromRequest is a convenience function to get logger from HTTP request
func LoggerFromRequest(r *http.Request, fallback *zap.Logger) *zap.Logger {
	return LoggerFromContext(r.Context(), fallback)
}
