package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devx/appads-extractor/internal/cache"
	"github.com/devx/appads-extractor/internal/models"
	"github.com/devx/appads-extractor/internal/ratelimit"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	c := cache.New(10, nil, t.TempDir(), time.Minute, nil, nil)
	limiter := ratelimit.New(100, 200, nil, nil, nil)
	return New(nil, c, limiter, 2, 10*time.Millisecond, 1024, nil, nil)
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	result, err := f.Fetch(context.Background(), srv.URL, models.StoreGooglePlay, Options{TTL: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Body)
	assert.False(t, result.FromCache)
}

func TestFetchServesFromCacheOnSecondCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("cached-body"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	ctx := context.Background()

	_, err := f.Fetch(ctx, srv.URL, models.StoreGooglePlay, Options{TTL: time.Minute})
	require.NoError(t, err)

	result, err := f.Fetch(ctx, srv.URL, models.StoreGooglePlay, Options{TTL: time.Minute})
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, 1, calls)
}

func TestFetchOversizedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), srv.URL, models.StoreGooglePlay, Options{TTL: time.Minute})
	require.Error(t, err)

	fe, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrOversized, fe.Kind)
}

func TestFetch404IsDetectedAsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), srv.URL, models.StoreGooglePlay, Options{TTL: time.Minute})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestFetchDedupesConcurrentRequestsForSameURL(t *testing.T) {
	var calls int
	var mu sync.Mutex
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		w.Write([]byte("shared-body"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	const n = 5
	var wg sync.WaitGroup
	results := make([]Result, n)
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.Fetch(context.Background(), srv.URL, models.StoreGooglePlay, Options{TTL: time.Minute})
		}(i)
	}

	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared-body", results[i].Body)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "concurrent fetches for the same URL should dedupe into a single request")
}

func TestFetchRetriesOn5xxThenSucceeds(t *testing.T) {
	attempt := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		if attempt < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok-after-retry"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	result, err := f.Fetch(context.Background(), srv.URL, models.StoreGooglePlay, Options{TTL: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "ok-after-retry", result.Body)
	assert.Equal(t, 2, attempt)
}
