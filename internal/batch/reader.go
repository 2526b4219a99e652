// Package batch runs the encoder and the gateway over CSV files of
// observations.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"forest-cover/internal/features"
)

const (
	wildernessColumn = "wilderness_area"
	soilColumn       = "soil_type"
)

// Row is one parsed CSV record. Line is 1-based and counts the header.
type Row struct {
	Line        int
	Observation features.RawObservation
}

// Reader reads observations from CSV whose header names the JSON keys of
// features.RawObservation. Columns left out of the header take their
// defaults.
type Reader struct {
	csv     *csv.Reader
	indices map[string]int
	line    int
}

// NewReader reads the header and rejects unknown or duplicate columns.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty CSV: missing header")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	known := make(map[string]bool, features.ContinuousFields+2)
	for _, d := range features.Domains {
		known[d.Key] = true
	}
	known[wildernessColumn] = true
	known[soilColumn] = true

	indices := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(col))
		if !known[col] {
			return nil, fmt.Errorf("unknown column %q", col)
		}
		if _, dup := indices[col]; dup {
			return nil, fmt.Errorf("duplicate column %q", col)
		}
		indices[col] = i
	}

	return &Reader{csv: cr, indices: indices, line: 1}, nil
}

// Next returns the next row, or io.EOF. Errors that only affect the current
// row are recognized by IsRowError; the reader stays usable after them.
func (r *Reader) Next() (Row, error) {
	record, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, csv.ErrFieldCount) {
			r.line++
			return Row{Line: r.line}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return Row{}, err
	}
	r.line++

	row := Row{Line: r.line, Observation: features.DefaultObservation()}
	for _, d := range features.Domains {
		raw, ok := r.cell(record, d.Key)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return row, fmt.Errorf("line %d: %w", r.line, features.ParseError(d.Key, raw, "is not a number"))
		}
		if err := row.Observation.Set(d.Key, v); err != nil {
			return row, fmt.Errorf("line %d: %w", r.line, err)
		}
	}

	if raw, ok := r.cell(record, wildernessColumn); ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return row, fmt.Errorf("line %d: %w", r.line, features.ParseError(wildernessColumn, raw, "is not a whole number"))
		}
		row.Observation.Wilderness = features.WildernessArea(v)
	}
	if raw, ok := r.cell(record, soilColumn); ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return row, fmt.Errorf("line %d: %w", r.line, features.ParseError(soilColumn, raw, "is not a whole number"))
		}
		row.Observation.Soil = features.SoilType(v)
	}
	return row, nil
}

func (r *Reader) cell(record []string, key string) (string, bool) {
	idx, ok := r.indices[key]
	if !ok || idx >= len(record) {
		return "", false
	}
	v := strings.TrimSpace(record[idx])
	return v, v != ""
}

// IsRowError reports whether err spoils a single row rather than the input.
func IsRowError(err error) bool {
	var fe *features.FieldError
	return errors.As(err, &fe) || errors.Is(err, csv.ErrFieldCount)
}
