package appads

import (
	"context"

	"github.com/devx/appads-extractor/internal/models"
)

// ResultCapBounds configures the adaptive search result cap (spec.md §4.6:
// "union list ≤ 1000 by default; adaptive cap 500–2000 based on current
// worker heap usage").
type ResultCapBounds struct {
	Min     int
	Max     int
	Default int
}

// Output is what a single analyzer task produces.
type Output struct {
	Analyzed      models.AnalyzedAppAds
	SearchResults *models.SearchResults
}

// Analyze parses body, and if query carries terms, also runs the search.
// It is intended to be the body of a Pool Task so it runs off the request
// goroutine.
func Analyze(ctx context.Context, body string, query models.SearchQuery, thresholds MemoryThresholds, capBounds ResultCapBounds, onProgress ProgressFunc) (Output, error) {
	result, err := analyzeDocument(body, thresholds, onProgress)
	if err != nil {
		return Output{}, err
	}

	out := Output{Analyzed: result.summary}
	if !query.Empty() {
		cap := adaptiveCap(capBounds)
		sr := runSearch(query, result.entries, cap)
		out.SearchResults = &sr
	}
	return out, nil
}

// adaptiveCap scales the result cap down as heap usage rises, within
// [Min, Max], defaulting to Default when usage is unremarkable.
func adaptiveCap(bounds ResultCapBounds) int {
	if bounds.Default <= 0 {
		bounds.Default = 1000
	}
	if bounds.Min <= 0 {
		bounds.Min = 500
	}
	if bounds.Max <= 0 {
		bounds.Max = 2000
	}

	heapMB := currentHeapMB()
	switch {
	case heapMB >= 300:
		return bounds.Min
	case heapMB <= 100:
		return bounds.Max
	default:
		return bounds.Default
	}
}
