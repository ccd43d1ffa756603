package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithTraceLoggerStampsBatchID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	var captured *zap.Logger
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = LoggerFromRequest(r, base)
	})

	handler := WithTraceLogger(base)(next)
	req := httptest.NewRequest(http.MethodPost, "/api/extract-multiple", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, captured)
	captured.Debug("test event")

	entries := logs.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	batchID, ok := fields["batch_id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, batchID)
}

func TestLoggerFromContextFallsBackWithoutMiddleware(t *testing.T) {
	fallback := zap.NewNop()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	got := LoggerFromRequest(req, fallback)
	assert.Equal(t, fallback, got)
}
