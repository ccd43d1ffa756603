package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/devx/appads-extractor/internal/middleware"
)

// ExtractMultipleHandler runs a batch of bundle IDs through the orchestrator
// and returns a single JSON response once every bundle has completed.
func (s *Server) ExtractMultipleHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "extract_multiple"
	method := r.Method

	bundleIds, query, err := decodeExtractRequest(w, r, s.Config.MaxBodyBytes, s.Config.MaxBundleIDs, s.Config.MaxSearchTerms)
	if err != nil {
		status := http.StatusBadRequest
		writeJSONError(w, status, err.Error())
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	ctx := r.Context()
	deadline := s.Config.BatchDeadline
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	resp := s.Orchestrator.RunBatch(ctx, bundleIds, query)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		middleware.LoggerFromRequest(r, s.Logger).Error("encode batch response", zap.Error(err))
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
