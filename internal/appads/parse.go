// Package appads implements the App-Ads Analyzer: line-level parsing of an
// app-ads.txt document, summary statistics, search-term matching, and the
// worker pool that isolates this CPU-bound work from request handling.
package appads

import (
	"runtime"
	"strings"
)

// entry is one parsed, valid app-ads.txt line.
type entry struct {
	lineNumber   int
	raw          string // trimmed original line, pre-comment-strip
	domain       string // lower-cased publisher domain (field 1)
	publisherId  string // field 2
	relationship string // field 3, normalized to "direct"/"reseller"/"other"
	tagId        string // field 4, optional
}

// chunkSize bounds peak memory per spec.md §4.6 ("chunks of ~2000").
const chunkSize = 2000

// gcHintEveryNChunks requests a GC hint periodically during large documents.
const gcHintEveryNChunks = 5

// MemoryThresholds in MiB of worker heap, per spec.md §4.6 (suggestive, not contractual).
type MemoryThresholds struct {
	WarnMB     int
	HighMB     int
	CriticalMB int
}

// DefaultMemoryThresholds matches the example figures in spec.md §4.6.
func DefaultMemoryThresholds() MemoryThresholds {
	return MemoryThresholds{WarnMB: 150, HighMB: 250, CriticalMB: 350}
}

// ErrMemoryExceeded signals the worker aborted because heap usage crossed
// the critical threshold mid-document.
type memoryExceededError struct{}

func (memoryExceededError) Error() string { return "MemoryExceeded" }

// ErrMemoryExceeded is returned by Analyze when the critical threshold trips.
var ErrMemoryExceeded error = memoryExceededError{}

// splitLines splits on CRLF, LF, and CR, per spec.md's boundary behavior. A
// terminator at the very end of the body ends the last line rather than
// starting an empty one.
func splitLines(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	body = strings.TrimSuffix(body, "\n")
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

// parseLine applies the per-line parsing rules: strip inline comment,
// tokenize by comma, trim fields. Returns (entry, kind) where kind is one
// of "comment", "empty", "valid", "invalid".
func parseLine(lineNumber int, raw string) (entry, string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return entry{}, "empty"
	}
	if strings.HasPrefix(trimmed, "#") {
		return entry{}, "comment"
	}

	// Strip inline comment.
	content := trimmed
	if idx := strings.Index(content, "#"); idx >= 0 {
		content = content[:idx]
	}

	fields := strings.Split(content, ",")
	nonEmpty := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	if len(nonEmpty) < 3 {
		return entry{}, "invalid"
	}

	rel := strings.ToLower(nonEmpty[2])
	if rel != "direct" && rel != "reseller" {
		rel = "other"
	}

	e := entry{
		lineNumber:   lineNumber,
		raw:          trimmed,
		domain:       strings.ToLower(nonEmpty[0]),
		publisherId:  nonEmpty[1],
		relationship: rel,
	}
	if len(nonEmpty) >= 4 {
		e.tagId = nonEmpty[3]
	}
	return e, "valid"
}

// maybeGCHint requests a GC hint after every gcHintEveryNChunks chunks.
func maybeGCHint(chunkIndex int) {
	if chunkIndex > 0 && chunkIndex%gcHintEveryNChunks == 0 {
		runtime.GC()
	}
}

func currentHeapMB() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc / (1 << 20)
}
