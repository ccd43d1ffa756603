package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/devx/appads-extractor/internal/models"
)

// extractRequest is the shared wire shape for both the batch and streaming
// extract-multiple endpoints.
type extractRequest struct {
	BundleIds   []string          `json:"bundleIds"`
	SearchTerms []json.RawMessage `json:"searchTerms"`
}

var (
	errEmptyBundleIds = errors.New("bundleIds must not be empty")
	errTooManyBundles = errors.New("too many bundleIds")
	errTooManyTerms   = errors.New("too many searchTerms")
	errBodyTooLarge   = errors.New("request body too large")
)

// decodeExtractRequest reads and validates the request body against the
// configured limits, returning bundle IDs and a parsed SearchQuery.
func decodeExtractRequest(w http.ResponseWriter, r *http.Request, maxBodyBytes int64, maxBundleIds, maxSearchTerms int) ([]string, models.SearchQuery, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req extractRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, models.SearchQuery{}, errBodyTooLarge
		}
		// The decoder may report a syntax error on the bytes it already holds
		// before it sees the size-limit error; reading on surfaces the latter.
		if _, rerr := io.Copy(io.Discard, r.Body); errors.As(rerr, &maxErr) {
			return nil, models.SearchQuery{}, errBodyTooLarge
		}
		if err == io.EOF {
			return nil, models.SearchQuery{}, errEmptyBundleIds
		}
		return nil, models.SearchQuery{}, fmt.Errorf("decode request: %w", err)
	}

	if len(req.BundleIds) == 0 {
		return nil, models.SearchQuery{}, errEmptyBundleIds
	}
	if len(req.BundleIds) > maxBundleIds {
		return nil, models.SearchQuery{}, errTooManyBundles
	}
	if len(req.SearchTerms) > maxSearchTerms {
		return nil, models.SearchQuery{}, errTooManyTerms
	}

	query, err := models.ParseSearchTerms(req.SearchTerms)
	if err != nil {
		return nil, models.SearchQuery{}, err
	}

	return req.BundleIds, query, nil
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
