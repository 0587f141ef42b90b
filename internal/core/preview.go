package core

import (
	"io"
	"time"
)

const maxErrorSamples = 20

// PreviewResult is a read-only analysis of an import file.
type PreviewResult struct {
	Headers          []string   `json:"headers"`
	MissingColumns   []string   `json:"missing_columns"`
	UnknownColumns   []string   `json:"unknown_columns"`
	TotalRows        int        `json:"total_rows"`
	Works            int        `json:"works"`
	Writers          int        `json:"writers"`
	ErrorCount       int        `json:"error_count"`
	Errors           []RowError `json:"errors"`
	Valid            bool       `json:"valid"`
	ProcessingTimeMs int64      `json:"processing_time_ms"`
}

// PreviewImport runs the validator over a file without writing anything.
// Only the first errors are returned; ErrorCount has the full count.
func PreviewImport(r io.Reader) (*PreviewResult, error) {
	start := time.Now()

	headers, rows, err := ReadRows(r)
	if err != nil {
		return nil, err
	}

	res := &PreviewResult{
		Headers:        headers,
		MissingColumns: []string{},
		UnknownColumns: []string{},
		Errors:         []RowError{},
		TotalRows:      len(rows),
	}

	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	for _, spec := range RoyaltyFieldSpecs {
		if spec.Required && !present[spec.Name] {
			res.MissingColumns = append(res.MissingColumns, spec.Name)
		}
	}
	known := make(map[string]bool, len(ImportColumns))
	for _, c := range ImportColumns {
		known[c] = true
	}
	for _, h := range headers {
		if h != "" && !known[h] {
			res.UnknownColumns = append(res.UnknownColumns, h)
		}
	}

	works := make(map[string]struct{})
	writers := make(map[string]struct{})
	for _, row := range rows {
		if id := row.Get(ColWorkID); id != "" {
			works[id] = struct{}{}
		}
		for _, w := range ParseWriters(row.Get(ColWriters)) {
			writers[w.IPCode] = struct{}{}
		}
	}
	res.Works = len(works)
	res.Writers = len(writers)

	errs := ValidateRows(rows)
	res.ErrorCount = len(errs)
	if len(errs) > maxErrorSamples {
		errs = errs[:maxErrorSamples]
	}
	res.Errors = append(res.Errors, errs...)
	res.Valid = res.ErrorCount == 0

	res.ProcessingTimeMs = time.Since(start).Milliseconds()
	return res, nil
}
