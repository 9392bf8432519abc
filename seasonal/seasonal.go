// Package seasonal extracts calendar seasonality from a monthly series. Two signals are
// produced: month to month transition changes keyed by calendar month pair, and per calendar
// month factors centered on 1.0.
package seasonal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/ledgerpulse/go-forecaster/timeseries"
	"gonum.org/v1/gonum/stat"
)

// DefaultTrailingMonths is the usual size of the history window used for transitions.
const DefaultTrailingMonths = 12

var ErrInvalidTransitionKey = errors.New("transition key must be formatted as <from>-<to> with months 1-12")

// TransitionKey identifies a move from one calendar month to another independent of year,
// e.g. March to April.
type TransitionKey struct {
	From int
	To   int
}

func (k TransitionKey) String() string {
	return fmt.Sprintf("%d-%d", k.From, k.To)
}

func (k TransitionKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *TransitionKey) UnmarshalText(data []byte) error {
	from, to, found := strings.Cut(string(data), "-")
	if !found {
		return fmt.Errorf("%q, %w", data, ErrInvalidTransitionKey)
	}
	f, err := strconv.Atoi(from)
	if err != nil || f < 1 || f > 12 {
		return fmt.Errorf("%q, %w", data, ErrInvalidTransitionKey)
	}
	t, err := strconv.Atoi(to)
	if err != nil || t < 1 || t > 12 {
		return fmt.Errorf("%q, %w", data, ErrInvalidTransitionKey)
	}
	k.From, k.To = f, t
	return nil
}

// Patterns holds the seasonal signals of a single series. A missing transition means no
// seasonal adjustment for that move and a missing factor means a neutral month.
type Patterns struct {
	// Transitions stores fractional changes, 0.1 being a 10% increase.
	Transitions map[TransitionKey]float64
	Factors     map[int]float64
}

// Change returns the fractional change for moving from calendar month from to to, or 0 if that
// transition was never observed.
func (p Patterns) Change(from, to int) float64 {
	change, exists := p.Transitions[TransitionKey{from, to}]
	if !exists {
		return 0
	}
	return change
}

// Factor returns the seasonal factor of a calendar month, or 1.0 if the month has no history.
func (p Patterns) Factor(month int) float64 {
	factor, exists := p.Factors[month]
	if !exists {
		return 1.0
	}
	return factor
}

type patternsJSON struct {
	Transitions map[string]float64 `json:"transitions"`
	Factors     map[string]float64 `json:"factors"`
}

func (p Patterns) MarshalJSON() ([]byte, error) {
	out := patternsJSON{
		Transitions: make(map[string]float64, len(p.Transitions)),
		Factors:     make(map[string]float64, len(p.Factors)),
	}
	for k, v := range p.Transitions {
		out.Transitions[k.String()] = v
	}
	for m, v := range p.Factors {
		out.Factors[strconv.Itoa(m)] = v
	}
	return json.Marshal(out)
}

func (p *Patterns) UnmarshalJSON(data []byte) error {
	var raw patternsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Transitions = make(map[TransitionKey]float64, len(raw.Transitions))
	for key, v := range raw.Transitions {
		var k TransitionKey
		if err := k.UnmarshalText([]byte(key)); err != nil {
			return err
		}
		p.Transitions[k] = v
	}
	p.Factors = make(map[int]float64, len(raw.Factors))
	for key, v := range raw.Factors {
		m, err := strconv.Atoi(key)
		if err != nil {
			return err
		}
		p.Factors[m] = v
	}
	return nil
}

// Extract computes the seasonal patterns of ts. Transitions are taken from consecutive months
// of the trailing window where both months hold usable values, and repeated transitions are
// averaged. Factors use every usable value in the series.
func Extract(ts *timeseries.TimeSeries, trailing []timeseries.Month) Patterns {
	return Patterns{
		Transitions: transitions(ts, trailing),
		Factors:     factors(ts),
	}
}

func transitions(ts *timeseries.TimeSeries, trailing []timeseries.Month) map[TransitionKey]float64 {
	changes := make(map[TransitionKey][]float64)
	for i := 1; i < len(trailing); i++ {
		prev, curr := trailing[i-1], trailing[i]
		prevVal, ok := ts.Usable(prev)
		if !ok {
			continue
		}
		currVal, ok := ts.Usable(curr)
		if !ok {
			continue
		}
		key := TransitionKey{From: prev.Num(), To: curr.Num()}
		changes[key] = append(changes[key], (currVal-prevVal)/prevVal)
	}

	res := make(map[TransitionKey]float64, len(changes))
	for key, vals := range changes {
		res[key] = stat.Mean(vals, nil)
	}
	return res
}

func factors(ts *timeseries.TimeSeries) map[int]float64 {
	byMonth := make(map[int][]float64)
	for _, m := range ts.UsableMonths() {
		byMonth[m.Num()] = append(byMonth[m.Num()], ts.Values[m])
	}
	if len(byMonth) == 0 {
		return map[int]float64{}
	}

	avgs := make(map[int]float64, len(byMonth))
	overall := make([]float64, 0, len(byMonth))
	for num, vals := range byMonth {
		avg := stat.Mean(vals, nil)
		avgs[num] = avg
		overall = append(overall, avg)
	}
	mean := stat.Mean(overall, nil)

	res := make(map[int]float64, len(avgs))
	for num, avg := range avgs {
		res[num] = avg / mean
	}
	return res
}
