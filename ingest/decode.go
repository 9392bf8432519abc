package ingest

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

type envelope struct {
	Source Source `json:"source"`
}

// DecodeRecord decodes a single JSON object tagged with its source and validates it.
func DecodeRecord(data []byte) (Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode record source: %w", err)
	}
	if env.Source == "" {
		return nil, fmt.Errorf("source, %w", ErrMissingField)
	}

	rec, err := newRecord(env.Source)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s record: %w", env.Source, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// DecodeJSON decodes a JSON array of source tagged records.
func DecodeJSON(r io.Reader) ([]Record, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for i, data := range raw {
		rec, err := DecodeRecord(data)
		if err != nil {
			return nil, fmt.Errorf("record %d, %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// EncodeRecord encodes a record as a JSON object tagged with its source.
func EncodeRecord(rec Record) ([]byte, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	src, err := json.Marshal(rec.Source())
	if err != nil {
		return nil, err
	}
	fields["source"] = src
	return json.Marshal(fields)
}
