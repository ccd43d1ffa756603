package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/devx/appads-extractor/internal/middleware"
)

const heartbeatInterval = time.Second

// StreamExtractMultipleHandler streams per-bundle results to the client as
// soon as each bundle completes, in completion order, interleaving periodic
// heartbeat comments to keep slow connections alive, per spec.md §4.7.
func (s *Server) StreamExtractMultipleHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "stream_extract_multiple"
	method := r.Method

	bundleIds, query, err := decodeExtractRequest(w, r, s.Config.MaxBodyBytes, s.Config.MaxBundleIDs, s.Config.MaxSearchTerms)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		s.Metrics.IncrementRequests(endpoint, method, "500")
		return
	}

	ctx := r.Context()
	deadline := s.Config.StreamDeadline
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	results, summary := s.Orchestrator.StreamBundles(ctx, bundleIds, query)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, `{"results":[`)
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	first := true
	enc := json.NewEncoder(w)
	reqLogger := middleware.LoggerFromRequest(r, s.Logger)

loop:
	for {
		select {
		case result, open := <-results:
			if !open {
				break loop
			}
			if !first {
				fmt.Fprint(w, ",")
			}
			first = false
			if err := enc.Encode(result); err != nil {
				reqLogger.Error("encode stream result", zap.Error(err))
				break loop
			}
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, "/* hb:%d */", time.Since(start).Milliseconds())
			flusher.Flush()
		case <-ctx.Done():
			break loop
		}
	}

	resp := summary()
	fmt.Fprintf(w, `],"success":%t,"totalProcessed":%d,"successCount":%d,"errorCount":%d,"processingTime":%q,"cacheStats":`,
		resp.Success, resp.TotalProcessed, resp.SuccessCount, resp.ErrorCount, resp.ProcessingTime)
	if err := enc.Encode(resp.CacheStats); err != nil {
		reqLogger.Error("encode stream trailer", zap.Error(err))
	}
	fmt.Fprint(w, "}")
	flusher.Flush()

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
