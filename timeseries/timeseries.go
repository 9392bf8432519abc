// Package timeseries holds the monthly series model shared by the forecast and correlation
// packages.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/goccy/go-json"
)

var (
	ErrNoEntityID    = errors.New("time series has no entity id")
	ErrNegativeValue = errors.New("monthly value is negative")
	ErrNonFinite     = errors.New("monthly value is not finite")
)

// Values maps a month to an observed value. A missing month means no data, which is not the
// same as an observed value of zero.
type Values map[Month]float64

// MarshalJSON encodes the values keyed by YYYY-MM.
func (v Values) MarshalJSON() ([]byte, error) {
	out := make(map[string]float64, len(v))
	for m, val := range v {
		out[m.String()] = val
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes values keyed by YYYY-MM.
func (v *Values) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Values, len(raw))
	for key, val := range raw {
		m, err := ParseMonth(key)
		if err != nil {
			return err
		}
		out[m] = val
	}
	*v = out
	return nil
}

// Months returns the months present in ascending order.
func (v Values) Months() []Month {
	months := make([]Month, 0, len(v))
	for m := range v {
		months = append(months, m)
	}
	slices.Sort(months)
	return months
}

// Sum returns the sum of all values.
func (v Values) Sum() float64 {
	var total float64
	for _, val := range v {
		total += val
	}
	return total
}

// TimeSeries is a named monthly series for a single business entity such as a revenue line or
// a traffic source.
type TimeSeries struct {
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Values     Values `json:"monthly_values"`

	// Total is a cached sum of Values and is recomputed on construction.
	Total float64 `json:"total"`
}

// New creates a TimeSeries from YYYY-MM keyed values.
func New(entityID, entityName string, values map[string]float64) (*TimeSeries, error) {
	parsed := make(Values, len(values))
	for key, val := range values {
		m, err := ParseMonth(key)
		if err != nil {
			return nil, fmt.Errorf("entity %s, %w", entityID, err)
		}
		parsed[m] = val
	}
	return FromMonths(entityID, entityName, parsed)
}

// FromMonths creates a TimeSeries from month keyed values. The input map is copied.
func FromMonths(entityID, entityName string, values Values) (*TimeSeries, error) {
	if entityID == "" {
		return nil, ErrNoEntityID
	}
	copied := make(Values, len(values))
	for m, val := range values {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("entity %s at %s, %w", entityID, m, ErrNonFinite)
		}
		if val < 0 {
			return nil, fmt.Errorf("entity %s at %s has %f, %w", entityID, m, val, ErrNegativeValue)
		}
		copied[m] = val
	}
	ts := &TimeSeries{
		EntityID:   entityID,
		EntityName: entityName,
		Values:     copied,
	}
	ts.Recompute()
	return ts, nil
}

// Validate checks the invariants enforced by the constructors. Useful after decoding a series
// from an external payload.
func (ts *TimeSeries) Validate() error {
	if ts.EntityID == "" {
		return ErrNoEntityID
	}
	for m, val := range ts.Values {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("entity %s at %s, %w", ts.EntityID, m, ErrNonFinite)
		}
		if val < 0 {
			return fmt.Errorf("entity %s at %s has %f, %w", ts.EntityID, m, val, ErrNegativeValue)
		}
	}
	return nil
}

// Recompute refreshes the cached total.
func (ts *TimeSeries) Recompute() {
	ts.Total = ts.Values.Sum()
}

// Len returns the number of months with data, including zero values.
func (ts *TimeSeries) Len() int {
	return len(ts.Values)
}

// Months returns all months with data in ascending order.
func (ts *TimeSeries) Months() []Month {
	return ts.Values.Months()
}

// Value returns the value observed for the month and whether the month has data.
func (ts *TimeSeries) Value(m Month) (float64, bool) {
	val, exists := ts.Values[m]
	return val, exists
}

// Usable returns the value for the month if it exists and is strictly positive. Zero often
// means an ingestion produced no activity, so ratio calculations must only use usable values.
func (ts *TimeSeries) Usable(m Month) (float64, bool) {
	val, exists := ts.Values[m]
	if !exists || val <= 0 {
		return 0, false
	}
	return val, true
}

// UsableMonths returns the months with strictly positive values in ascending order.
func (ts *TimeSeries) UsableMonths() []Month {
	months := make([]Month, 0, len(ts.Values))
	for m, val := range ts.Values {
		if val > 0 {
			months = append(months, m)
		}
	}
	slices.Sort(months)
	return months
}

// NonZero returns the strictly positive values in chronological order.
func (ts *TimeSeries) NonZero() []float64 {
	months := ts.UsableMonths()
	vals := make([]float64, len(months))
	for i, m := range months {
		vals[i] = ts.Values[m]
	}
	return vals
}

// LastUsable returns the last month holding a strictly positive value.
func (ts *TimeSeries) LastUsable() (Month, float64, bool) {
	months := ts.UsableMonths()
	if len(months) == 0 {
		return 0, 0, false
	}
	last := months[len(months)-1]
	return last, ts.Values[last], true
}

// Trailing returns the n calendar months ending at the last usable month. Months inside the
// window may have no data.
func (ts *TimeSeries) Trailing(n int) []Month {
	last, _, ok := ts.LastUsable()
	if !ok || n <= 0 {
		return nil
	}
	return Range(last.Add(-n+1), n)
}

// Slice returns a copy containing only months in [from, to].
func (ts *TimeSeries) Slice(from, to Month) *TimeSeries {
	sliced := &TimeSeries{
		EntityID:   ts.EntityID,
		EntityName: ts.EntityName,
		Values:     make(Values),
	}
	for m, val := range ts.Values {
		if m >= from && m <= to {
			sliced.Values[m] = val
		}
	}
	sliced.Recompute()
	return sliced
}

// Copy returns a deep copy of the series.
func (ts *TimeSeries) Copy() *TimeSeries {
	values := make(Values, len(ts.Values))
	for m, val := range ts.Values {
		values[m] = val
	}
	return &TimeSeries{
		EntityID:   ts.EntityID,
		EntityName: ts.EntityName,
		Values:     values,
		Total:      ts.Total,
	}
}
