package pipeline_test

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devx/appads-extractor/internal/appads"
	"github.com/devx/appads-extractor/internal/cache"
	"github.com/devx/appads-extractor/internal/fetch"
	"github.com/devx/appads-extractor/internal/models"
	"github.com/devx/appads-extractor/internal/observability"
	"github.com/devx/appads-extractor/internal/pipeline"
	"github.com/devx/appads-extractor/internal/ratelimit"
)

const listingHTML = `<html><head><meta name="appstore:developer_url" content="https://example-developer.com/about"></head><body></body></html>`
const appAdsBody = "example.com, 12345, DIRECT\nexample.com, 67890, RESELLER\n"

func newTestOrchestrator(t *testing.T, storeHandler http.Handler) *pipeline.Orchestrator {
	t.Helper()
	server := httptest.NewTLSServer(storeHandler)
	t.Cleanup(server.Close)

	// Every developer domain the extractor resolves (example.com,
	// example-developer.com, ...) must land on the same local server
	// regardless of the hostname in the request URL.
	transport := server.Client().Transport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return net.Dial(network, server.Listener.Addr().String())
	}
	client := &http.Client{Transport: transport}

	logger := zap.NewNop()
	metrics := observability.NewNoOpRegistry()

	c := cache.New(100, nil, t.TempDir(), time.Minute, metrics, logger)
	limiter := ratelimit.New(100, 200, nil, metrics, logger)
	fetcher := fetch.New(client, c, limiter, 1, 10*time.Millisecond, 1<<20, metrics, logger)
	pool := appads.NewPool(appads.Config{MinWorkers: 1, MaxWorkers: 2, TaskTimeout: 5 * time.Second, MaxIdleTime: time.Minute}, metrics, logger)
	t.Cleanup(pool.Shutdown)

	o, err := pipeline.New(c, fetcher, pool, pipeline.Config{
		Concurrency:     4,
		ListingTTL:      time.Minute,
		AppAdsTTL:       time.Minute,
		TaskTimeout:     5 * time.Second,
		MaxContentBytes: 1 << 20,
		MemThresholds:   appads.DefaultMemoryThresholds(),
		CapBounds:       appads.ResultCapBounds{Min: 500, Max: 2000, Default: 1000},
	}, metrics, logger)
	require.NoError(t, err)
	return o
}

func TestRunBatchSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/app-ads.txt":
			fmt.Fprint(w, appAdsBody)
		default:
			fmt.Fprint(w, listingHTML)
		}
	})

	o := newTestOrchestrator(t, mux)

	resp := o.RunBatch(context.Background(), []string{"com.example.app"}, models.SearchQuery{})
	require.Len(t, resp.Results, 1)
	result := resp.Results[0]
	assert.True(t, result.Success)
	assert.Equal(t, models.StoreGooglePlay, result.StoreKind)
	require.NotNil(t, result.AppAdsTxt)
	assert.True(t, result.AppAdsTxt.Exists)
	require.NotNil(t, result.AppAdsTxt.Analyzed)
	assert.Equal(t, 2, result.AppAdsTxt.Analyzed.ValidLines)
}

func TestRunBatchUnsupportedBundle(t *testing.T) {
	o := newTestOrchestrator(t, http.NotFoundHandler())
	resp := o.RunBatch(context.Background(), []string{"!!!"}, models.SearchQuery{})
	require.Len(t, resp.Results, 1)
	assert.False(t, resp.Results[0].Success)
	assert.Equal(t, "UnsupportedBundle", resp.Results[0].ErrorKind)
}

func TestStreamBundlesPreservesCompletionAndSummary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/app-ads.txt" {
			fmt.Fprint(w, appAdsBody)
			return
		}
		fmt.Fprint(w, listingHTML)
	})
	o := newTestOrchestrator(t, mux)

	results, summary := o.StreamBundles(context.Background(), []string{"com.example.app", "!!!"}, models.SearchQuery{})
	count := 0
	for range results {
		count++
	}
	assert.Equal(t, 2, count)

	final := summary()
	assert.Equal(t, 2, final.TotalProcessed)
	assert.Equal(t, 1, final.SuccessCount)
	assert.Equal(t, 1, final.ErrorCount)
}
