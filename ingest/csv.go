package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrMissingColumn = errors.New("csv header is missing a required column")

const (
	ColumnEntityID   = "entity_id"
	ColumnEntityName = "entity_name"
	ColumnMonth      = "month"
	ColumnValue      = "value"
)

// CSVOptions configures ReadCSV.
type CSVOptions struct {
	Delimiter rune
	SkipRows  int
}

// NewDefaultCSVOptions returns comma separated options without skipped rows.
func NewDefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		Delimiter: ',',
	}
}

// ReadCSV reads manual entries from a CSV with an entity_id, entity_name, month, value header.
// Columns may appear in any order and entity_name is optional. Rows with an empty value are
// skipped since a blank cell means the month has no data.
func ReadCSV(r io.Reader, opt *CSVOptions) ([]Record, error) {
	if opt == nil {
		opt = NewDefaultCSVOptions()
	}

	reader := csv.NewReader(r)
	if opt.Delimiter != 0 {
		reader.Comma = opt.Delimiter
	}
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	for i := 0; i < opt.SkipRows; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, fmt.Errorf("failed to skip row %d: %w", i+1, err)
		}
	}

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	idx := map[string]int{
		ColumnEntityID:   -1,
		ColumnEntityName: -1,
		ColumnMonth:      -1,
		ColumnValue:      -1,
	}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.Trim(h, "\"")))
		if _, known := idx[h]; known {
			idx[h] = i
		}
	}
	for _, col := range []string{ColumnEntityID, ColumnMonth, ColumnValue} {
		if idx[col] < 0 {
			return nil, fmt.Errorf("%s, %w", col, ErrMissingColumn)
		}
	}

	field := func(row []string, col string) string {
		i := idx[col]
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []Record
	line := opt.SkipRows + 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		raw := field(row, ColumnValue)
		if raw == "" {
			continue
		}
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d value %q: %w", line, raw, err)
		}

		rec := &ManualEntry{
			EntityID:   field(row, ColumnEntityID),
			EntityName: field(row, ColumnEntityName),
			Period:     field(row, ColumnMonth),
			Amount:     val,
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("line %d, %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
