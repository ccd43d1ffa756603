package api_test

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devx/appads-extractor/internal/api"
	"github.com/devx/appads-extractor/internal/appads"
	"github.com/devx/appads-extractor/internal/cache"
	"github.com/devx/appads-extractor/internal/config"
	"github.com/devx/appads-extractor/internal/fetch"
	"github.com/devx/appads-extractor/internal/observability"
	"github.com/devx/appads-extractor/internal/pipeline"
	"github.com/devx/appads-extractor/internal/ratelimit"
)

const testListingHTML = `<html><head><meta name="appstore:developer_url" content="https://example-developer.com/about"></head></html>`
const testAppAdsBody = "example.com, 111, DIRECT\nexample.com, 222, RESELLER\n"

// newTestServer wires a full Server against a local TLS store that answers
// every listing and app-ads.txt fetch, so handler tests exercise the real
// orchestrator rather than a mock.
func newTestServer(t *testing.T) *api.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/app-ads.txt" {
			fmt.Fprint(w, testAppAdsBody)
			return
		}
		fmt.Fprint(w, testListingHTML)
	})
	store := httptest.NewTLSServer(mux)
	t.Cleanup(store.Close)

	transport := store.Client().Transport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return net.Dial(network, store.Listener.Addr().String())
	}
	client := &http.Client{Transport: transport}

	logger := zap.NewNop()
	metrics := observability.NewNoOpRegistry()

	c := cache.New(100, nil, t.TempDir(), time.Minute, metrics, logger)
	limiter := ratelimit.New(100, 200, nil, metrics, logger)
	fetcher := fetch.New(client, c, limiter, 1, 10*time.Millisecond, 1<<20, metrics, logger)
	pool := appads.NewPool(appads.Config{MinWorkers: 1, MaxWorkers: 2, TaskTimeout: 5 * time.Second, MaxIdleTime: time.Minute}, metrics, logger)
	t.Cleanup(pool.Shutdown)

	orch, err := pipeline.New(c, fetcher, pool, pipeline.Config{
		Concurrency:     4,
		ListingTTL:      time.Minute,
		AppAdsTTL:       time.Minute,
		TaskTimeout:     5 * time.Second,
		MaxContentBytes: 1 << 20,
		MemThresholds:   appads.DefaultMemoryThresholds(),
		CapBounds:       appads.ResultCapBounds{Min: 500, Max: 2000, Default: 1000},
	}, metrics, logger)
	require.NoError(t, err)

	cfg := config.Config{
		MaxBundleIDs:   10,
		MaxSearchTerms: 5,
		MaxBodyBytes:   1 << 20,
		BatchDeadline:  10 * time.Second,
		StreamDeadline: 10 * time.Second,
	}

	return api.NewServer(logger, orch, metrics, cfg)
}
