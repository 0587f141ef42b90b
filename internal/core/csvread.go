package core

// csvread.go reads an import file into header-keyed rows.
//
// The reader is forgiving about the file itself (BOM, invalid UTF-8, ragged
// rows, stray quotes) and leaves judging the content to ValidateRows.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one data record keyed by upper-cased header name.
type Row struct {
	Line   int
	Values map[string]string
}

// Get returns the cleaned value of col, or "" when absent.
func (r Row) Get(col string) string {
	return CleanCell(r.Values[col])
}

// Present reports whether col holds a non-blank value.
func (r Row) Present(col string) bool {
	return r.Get(col) != ""
}

// NewRow builds a Row from column/value pairs. Mostly useful in tests and
// callers that assemble rows by hand.
func NewRow(line int, kv ...string) Row {
	vals := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		vals[strings.ToUpper(kv[i])] = kv[i+1]
	}
	return Row{Line: line, Values: vals}
}

// ReadRows parses CSV data. The first record is the header. Records with
// every cell blank are skipped; Line keeps the physical file line so messages
// point at the right place.
func ReadRows(r io.Reader) ([]string, []Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	data = sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrEmptyFile
	}
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv header: %w", err)
	}

	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.ToUpper(CleanCell(h))
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse csv: %w", err)
		}
		if isEmptyRow(rec) {
			continue
		}

		line, _ := cr.FieldPos(0)
		vals := make(map[string]string, len(headers))
		for i, h := range headers {
			if h == "" || i >= len(rec) {
				continue
			}
			vals[h] = rec[i]
		}
		rows = append(rows, Row{Line: line, Values: vals})
	}

	return headers, rows, nil
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
