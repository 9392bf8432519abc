package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ledgerpulse/go-forecaster/timeseries"
)

var (
	ErrUnknownEntity     = errors.New("entity not found in loaded series")
	ErrUnsupportedFormat = errors.New("unsupported input format")
)

// Merge aggregates records into one series per entity ordered by entity id. Records of the
// same entity and month are summed.
func Merge(records []Record) ([]*timeseries.TimeSeries, error) {
	type entity struct {
		name   string
		values timeseries.Values
	}
	entities := make(map[string]*entity)

	for i, rec := range records {
		if rec == nil {
			continue
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("record %d, %w", i, err)
		}
		id, name := rec.Entity()
		e, exists := entities[id]
		if !exists {
			e = &entity{values: make(timeseries.Values)}
			entities[id] = e
		}
		if e.name == "" {
			e.name = name
		}
		e.values[rec.Month()] += rec.Value()
	}

	ids := make([]string, 0, len(entities))
	for id := range entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	series := make([]*timeseries.TimeSeries, 0, len(ids))
	for _, id := range ids {
		e := entities[id]
		ts, err := timeseries.FromMonths(id, e.name, e.values)
		if err != nil {
			return nil, err
		}
		series = append(series, ts)
	}
	return series, nil
}

// Select returns the series with the given ids in the order requested. No ids selects all.
func Select(series []*timeseries.TimeSeries, ids []string) ([]*timeseries.TimeSeries, error) {
	if len(ids) == 0 {
		return series, nil
	}
	byID := make(map[string]*timeseries.TimeSeries, len(series))
	for _, ts := range series {
		byID[ts.EntityID] = ts
	}
	res := make([]*timeseries.TimeSeries, 0, len(ids))
	for _, id := range ids {
		ts, exists := byID[id]
		if !exists {
			return nil, fmt.Errorf("%q, %w", id, ErrUnknownEntity)
		}
		res = append(res, ts)
	}
	return res, nil
}

// LoadFile reads records from a .json or .csv file and merges them into series.
func LoadFile(path string) ([]*timeseries.TimeSeries, error) {
	return LoadFiles(path)
}

// LoadFiles reads the records of every file and merges them together, so an entity may be
// spread across several exports.
func LoadFiles(paths ...string) ([]*timeseries.TimeSeries, error) {
	var records []Record
	for _, path := range paths {
		recs, err := readFile(path)
		if err != nil {
			return nil, err
		}
		slog.Debug("read records", "path", path, "records", len(recs))
		records = append(records, recs...)
	}

	series, err := Merge(records)
	if err != nil {
		return nil, err
	}
	slog.Debug("merged series", "files", len(paths), "records", len(records), "series", len(series))
	return series, nil
}

func readFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var records []Record
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		records, err = DecodeJSON(f)
	case ".csv":
		records, err = ReadCSV(f, nil)
	default:
		return nil, fmt.Errorf("%q, %w", ext, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return records, nil
}
