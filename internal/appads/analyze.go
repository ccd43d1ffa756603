package appads

import (
	"github.com/devx/appads-extractor/internal/models"
)

// ProgressFunc receives a watermark label ("warning"|"high") as memory
// climbs during a large document; the orchestrator may log or surface it.
type ProgressFunc func(watermark string, heapMB uint64)

// analysisResult carries both the summary and the valid entries, since the
// latter are needed by Search without re-parsing the document.
type analysisResult struct {
	summary models.AnalyzedAppAds
	entries []entry
}

// analyzeDocument parses body in chunks of chunkSize lines, tallying line
// categories and collecting valid entries for later search matching. It
// aborts with ErrMemoryExceeded if heap usage crosses thresholds.CriticalMB.
func analyzeDocument(body string, thresholds MemoryThresholds, onProgress ProgressFunc) (analysisResult, error) {
	lines := splitLines(body)
	result := analysisResult{
		summary: models.AnalyzedAppAds{TotalLines: len(lines)},
	}

	publishers := make(map[string]struct{})
	warnedHigh := false
	warnedWarn := false

	for chunkStart := 0; chunkStart < len(lines); chunkStart += chunkSize {
		chunkEnd := chunkStart + chunkSize
		if chunkEnd > len(lines) {
			chunkEnd = len(lines)
		}
		chunkIndex := chunkStart / chunkSize

		for i := chunkStart; i < chunkEnd; i++ {
			e, kind := parseLine(i+1, lines[i])
			switch kind {
			case "empty":
				result.summary.EmptyLines++
			case "comment":
				result.summary.CommentLines++
			case "invalid":
				result.summary.InvalidLines++
			case "valid":
				result.summary.ValidLines++
				publishers[e.domain] = struct{}{}
				switch e.relationship {
				case "direct":
					result.summary.Relationships.Direct++
				case "reseller":
					result.summary.Relationships.Reseller++
				default:
					result.summary.Relationships.Other++
				}
				result.entries = append(result.entries, e)
			}
		}

		maybeGCHint(chunkIndex)

		if thresholds.CriticalMB > 0 || thresholds.HighMB > 0 || thresholds.WarnMB > 0 {
			heapMB := currentHeapMB()
			if thresholds.CriticalMB > 0 && heapMB >= uint64(thresholds.CriticalMB) {
				return result, ErrMemoryExceeded
			}
			if thresholds.HighMB > 0 && heapMB >= uint64(thresholds.HighMB) && !warnedHigh {
				warnedHigh = true
				if onProgress != nil {
					onProgress("high", heapMB)
				}
			} else if thresholds.WarnMB > 0 && heapMB >= uint64(thresholds.WarnMB) && !warnedWarn {
				warnedWarn = true
				if onProgress != nil {
					onProgress("warning", heapMB)
				}
			}
		}
	}

	result.summary.UniquePublishers = len(publishers)
	return result, nil
}
