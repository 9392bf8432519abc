// Package forecast projects a monthly series forward by compounding a growth rate with the
// seasonal month to month transitions found in its recent history.
package forecast

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/ledgerpulse/go-forecaster/seasonal"
	"github.com/ledgerpulse/go-forecaster/stats"
	"github.com/ledgerpulse/go-forecaster/timeseries"
)

var (
	ErrNilSeries           = errors.New("time series is nil")
	ErrInvalidHorizon      = errors.New("horizon must not be negative")
	ErrInsufficientHistory = errors.New("insufficient usable history")
)

// Generator produces forecasts for individual series. It holds no state between calls and is
// safe for concurrent use as long as the options are not modified.
type Generator struct {
	opt *Options
}

// New creates a new generator with the given options. If none are provided, a default is used
func New(opt *Options) *Generator {
	if opt == nil {
		opt = NewDefaultOptions()
	}
	return &Generator{opt: opt}
}

// Options returns the options the generator was created with.
func (g *Generator) Options() *Options {
	return g.opt
}

// Generate forecasts horizon months of ts starting at start. The projection walks forward one
// month at a time from the last usable observation, so months between the end of the history
// and start still contribute to compounding but are not reported. Adjustments targeting other
// entities are ignored.
//
// A series with too little usable history yields an empty result rather than an error.
func (g *Generator) Generate(ts *timeseries.TimeSeries, start timeseries.Month, horizon int, adjs Adjustments) (*Result, error) {
	if ts == nil {
		return nil, ErrNilSeries
	}
	if horizon < 0 {
		return nil, fmt.Errorf("received %d, %w", horizon, ErrInvalidHorizon)
	}
	adjs = adjs.For(ts.EntityID)
	if err := adjs.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		EntityID: ts.EntityID,
		Start:    start,
		Horizon:  horizon,
		Forecast: make(timeseries.Values),
	}

	numUsable := len(ts.UsableMonths())
	if numUsable < g.opt.minPoints() {
		slog.Info("not enough usable history to forecast",
			"entity_id", ts.EntityID,
			"usable_points", numUsable,
			"min_points", g.opt.minPoints(),
		)
		return res, nil
	}

	base := ts
	if g.opt.Calendar != nil {
		base = g.opt.Calendar.Normalize(ts)
	}

	res.ComputedCMGR = stats.CMGR(base.NonZero())
	res.CMGR = res.ComputedCMGR
	if rate, ok := adjs.CMGR(ts.EntityID); ok {
		res.CMGR = rate
		res.CMGROverridden = true
	}
	res.Patterns = seasonal.Extract(base, base.Trailing(g.opt.trailingMonths()))

	last, prev, _ := base.LastUsable()
	res.LastObserved = last

	manual := adjs.Manual(ts.EntityID)
	end := start.Add(horizon)
	growth := 1.0 + res.CMGR
	prevNum := last.Num()

	for m := last.Add(1); m < end; m = m.Add(1) {
		modelVal := prev * (1.0 + res.Patterns.Change(prevNum, m.Num())) * growth
		if modelVal < 0 || math.IsNaN(modelVal) {
			modelVal = 0
		}

		out := g.toMonthly(m, modelVal)
		next := modelVal
		if override, exists := manual[m]; exists {
			out = override
			if !g.opt.PinOverrides {
				next = g.fromMonthly(m, override)
			}
			if m >= start {
				res.Overridden = append(res.Overridden, m)
			}
		}

		if m >= start {
			res.Forecast[m] = out
		}
		prev = next
		prevNum = m.Num()
	}

	if start <= last {
		slog.Warn("forecast start overlaps history, only months after the last observation are projected",
			"entity_id", ts.EntityID,
			"start", start.String(),
			"last_observed", last.String(),
		)
	}
	return res, nil
}

// toMonthly converts a chained value into a monthly total for m.
func (g *Generator) toMonthly(m timeseries.Month, val float64) float64 {
	if g.opt.Calendar == nil {
		return val
	}
	return g.opt.Calendar.Scale(m, val)
}

// fromMonthly converts a monthly total for m into the units the chain compounds in.
func (g *Generator) fromMonthly(m timeseries.Month, val float64) float64 {
	if g.opt.Calendar == nil {
		return val
	}
	days := g.opt.Calendar.BusinessDays(m)
	if days == 0 {
		return val
	}
	return val / float64(days)
}
