// Package csvstream renders bundle extraction results as CSV, flushing in
// fixed-size chunks so a long-running export keeps making progress on the
// wire instead of buffering the whole response in memory.
package csvstream

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/devx/appads-extractor/internal/models"
)

// flushEvery controls how many data rows accumulate before the underlying
// writer is flushed to the client.
const flushEvery = 100

var header = []string{
	"bundleId", "storeKind", "success", "domain", "appAdsExists",
	"totalLines", "validLines", "directCount", "resellerCount", "otherCount",
	"errorKind", "error",
}

// Flusher is satisfied by http.ResponseWriter; kept as its own interface so
// csvstream has no net/http dependency.
type Flusher interface {
	Flush()
}

// Writer streams BundleResult rows as CSV rows, flushing every flushEvery
// rows and once more at Close.
type Writer struct {
	csv      *csv.Writer
	flusher  Flusher
	rowCount int
	omitted  int
}

// NewWriter wraps w (and its optional Flusher) and writes the CSV header
// immediately.
func NewWriter(w io.Writer, flusher Flusher) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return nil, err
	}
	cw.Flush()
	if flusher != nil {
		flusher.Flush()
	}
	return &Writer{csv: cw, flusher: flusher}, nil
}

// WriteResult appends one row for a BundleResult. Results whose app-ads.txt
// content was truncated are tallied separately through NoteOmitted.
func (w *Writer) WriteResult(r models.BundleResult) error {
	row := []string{
		r.BundleId,
		string(r.StoreKind),
		strconv.FormatBool(r.Success),
		r.Domain,
	}

	if r.AppAdsTxt != nil {
		row = append(row, strconv.FormatBool(r.AppAdsTxt.Exists))
		if r.AppAdsTxt.Analyzed != nil {
			a := r.AppAdsTxt.Analyzed
			row = append(row,
				strconv.Itoa(a.TotalLines),
				strconv.Itoa(a.ValidLines),
				strconv.Itoa(a.Relationships.Direct),
				strconv.Itoa(a.Relationships.Reseller),
				strconv.Itoa(a.Relationships.Other),
			)
		} else {
			row = append(row, "", "", "", "", "")
		}
	} else {
		row = append(row, "false", "", "", "", "")
	}

	row = append(row, r.ErrorKind, r.Error)

	if err := w.csv.Write(row); err != nil {
		return err
	}
	w.rowCount++
	if w.rowCount%flushEvery == 0 {
		w.csv.Flush()
		if err := w.csv.Error(); err != nil {
			return err
		}
		if w.flusher != nil {
			w.flusher.Flush()
		}
	}
	return nil
}

// NoteOmitted counts one result whose app-ads.txt content was truncated for
// size, so Close can emit a trailer row stating how many there were.
func (w *Writer) NoteOmitted() {
	w.omitted++
}

// Close flushes any buffered rows and, if any content was omitted for size,
// appends a trailing summary row.
func (w *Writer) Close() error {
	if w.omitted > 0 {
		_ = w.csv.Write([]string{"", "", "", "", "", "", "", "", "", "",
			"Truncated", strconv.Itoa(w.omitted) + " row(s) had content omitted for size"})
	}
	w.csv.Flush()
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return w.csv.Error()
}
