package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/devx/appads-extractor/internal/csvstream"
	"github.com/devx/appads-extractor/internal/middleware"
)

// StreamExportCSVHandler runs a batch of bundle IDs and streams the results
// as CSV, one row per bundle, in completion order.
func (s *Server) StreamExportCSVHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "stream_export_csv"
	method := r.Method

	bundleIds, query, err := decodeExtractRequest(w, r, s.Config.MaxBodyBytes, s.Config.MaxBundleIDs, s.Config.MaxSearchTerms)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	flusher, _ := w.(http.Flusher)

	ctx := r.Context()
	deadline := s.Config.StreamDeadline
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	results, _ := s.Orchestrator.StreamBundles(ctx, bundleIds, query)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="app-ads-extract.csv"`)
	w.WriteHeader(http.StatusOK)

	reqLogger := middleware.LoggerFromRequest(r, s.Logger)

	cw, err := csvstream.NewWriter(w, flusher)
	if err != nil {
		reqLogger.Error("write csv header", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	for {
		select {
		case result, open := <-results:
			if !open {
				if err := cw.Close(); err != nil {
					reqLogger.Error("close csv stream", zap.Error(err))
				}
				s.Metrics.IncrementRequests(endpoint, method, "200")
				s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
				return
			}
			if result.AppAdsTxt != nil && result.AppAdsTxt.ContentTruncated {
				cw.NoteOmitted()
			}
			if err := cw.WriteResult(result); err != nil {
				reqLogger.Error("write csv row", zap.Error(err))
				s.Metrics.IncrementRequests(endpoint, method, "500")
				s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
				return
			}
		case <-ctx.Done():
			_ = cw.Close()
			s.Metrics.IncrementRequests(endpoint, method, "499")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			return
		}
	}
}
