// Package correlation finds statistical relationships between monthly series: pearson
// correlation at a fixed lag, a lead/lag search, predictor ranking and clusters of series that
// move together.
package correlation

import (
	"math"
	"slices"

	"github.com/ledgerpulse/go-forecaster/stats"
	"github.com/ledgerpulse/go-forecaster/timeseries"
)

// rTolerance treats coefficients this close together as equal during the lag search so that
// floating point noise does not decide the winning lag.
const rTolerance = 1e-9

// Result is a single correlation between two series. A positive Lag means SeriesA leads SeriesB
// by Lag months. A nil *Result means the correlation could not be computed.
type Result struct {
	SeriesA      string          `json:"series_a"`
	SeriesB      string          `json:"series_b"`
	R            float64         `json:"r"`
	PValue       float64         `json:"p_value"`
	Strength     stats.Strength  `json:"strength"`
	Direction    stats.Direction `json:"direction"`
	Lag          int             `json:"lag"`
	SharedMonths int             `json:"shared_months"`
}

// AbsR returns |r|.
func (r *Result) AbsR() float64 {
	return math.Abs(r.R)
}

// Analyzer computes correlations with a fixed set of options.
type Analyzer struct {
	opt *Options
}

// New creates a new analyzer with the given options. If none are provided, a default is used
func New(opt *Options) *Analyzer {
	if opt == nil {
		opt = NewDefaultOptions()
	}
	return &Analyzer{opt: opt}
}

// Options returns the options the analyzer was created with.
func (a *Analyzer) Options() *Options {
	return a.opt
}

// Correlate computes the pearson correlation of a and b with b shifted by lag months. Only pairs
// where both values are usable are kept and nil is returned when fewer than MinPoints pairs
// remain.
func (a *Analyzer) Correlate(x, y *timeseries.TimeSeries, lag int) *Result {
	if x == nil || y == nil {
		return nil
	}
	xVals, yVals := a.align(x, y, lag)
	if len(xVals) < a.opt.minPoints() {
		return nil
	}

	r, err := stats.Pearson(xVals, yVals)
	if err != nil {
		return nil
	}
	return &Result{
		SeriesA:      x.EntityID,
		SeriesB:      y.EntityID,
		R:            r,
		PValue:       stats.PValue(r, len(xVals)),
		Strength:     stats.ClassifyStrength(r),
		Direction:    stats.ClassifyDirection(r),
		Lag:          lag,
		SharedMonths: len(xVals),
	}
}

// FindOptimalLag scans every lag in [-MaxLag, MaxLag] and returns the correlation with the
// largest |r|. Ties prefer more shared months, then the lag that lines up the first usable
// months of both series and then the smaller |lag|. Nil is returned when no lag has enough
// aligned points.
func (a *Analyzer) FindOptimalLag(x, y *timeseries.TimeSeries) *Result {
	if x == nil || y == nil {
		return nil
	}
	maxLag := a.opt.maxLag()
	anchor, anchored := a.anchorLag(x, y)

	var best *Result
	for lag := -maxLag; lag <= maxLag; lag++ {
		res := a.Correlate(x, y, lag)
		if res == nil {
			continue
		}
		if best == nil || better(res, best, anchor, anchored) {
			best = res
		}
	}
	return best
}

func better(candidate, best *Result, anchor int, anchored bool) bool {
	diff := candidate.AbsR() - best.AbsR()
	if diff > rTolerance {
		return true
	}
	if diff < -rTolerance {
		return false
	}
	if candidate.SharedMonths != best.SharedMonths {
		return candidate.SharedMonths > best.SharedMonths
	}
	if anchored && (candidate.Lag == anchor) != (best.Lag == anchor) {
		return candidate.Lag == anchor
	}
	return absInt(candidate.Lag) < absInt(best.Lag)
}

// anchorLag returns the lag that pairs the first usable month of x with the first usable month
// of y.
func (a *Analyzer) anchorLag(x, y *timeseries.TimeSeries) (int, bool) {
	if a.opt.Alignment == AlignIndex {
		xi, xok := firstUsableIndex(x)
		yi, yok := firstUsableIndex(y)
		return yi - xi, xok && yok
	}
	xm := x.UsableMonths()
	ym := y.UsableMonths()
	if len(xm) == 0 || len(ym) == 0 {
		return 0, false
	}
	return ym[0].Sub(xm[0]), true
}

func firstUsableIndex(ts *timeseries.TimeSeries) (int, bool) {
	for i, m := range ts.Months() {
		if _, ok := ts.Usable(m); ok {
			return i, true
		}
	}
	return 0, false
}

func (a *Analyzer) align(x, y *timeseries.TimeSeries, lag int) ([]float64, []float64) {
	if a.opt.Alignment == AlignIndex {
		return alignIndex(x, y, lag)
	}
	return alignCalendar(x, y, lag)
}

// alignCalendar pairs month m of x with month m+lag of y.
func alignCalendar(x, y *timeseries.TimeSeries, lag int) ([]float64, []float64) {
	months := x.UsableMonths()
	xVals := make([]float64, 0, len(months))
	yVals := make([]float64, 0, len(months))
	for _, m := range months {
		yVal, ok := y.Usable(m.Add(lag))
		if !ok {
			continue
		}
		xVals = append(xVals, x.Values[m])
		yVals = append(yVals, yVal)
	}
	return xVals, yVals
}

// alignIndex pairs the i-th month of x with the (i+lag)-th month of y by position in each
// series' sorted months, ignoring calendar gaps.
func alignIndex(x, y *timeseries.TimeSeries, lag int) ([]float64, []float64) {
	xMonths := x.Months()
	yMonths := y.Months()
	xVals := make([]float64, 0, len(xMonths))
	yVals := make([]float64, 0, len(xMonths))
	for i, m := range xMonths {
		j := i + lag
		if j < 0 || j >= len(yMonths) {
			continue
		}
		xVal, ok := x.Usable(m)
		if !ok {
			continue
		}
		yVal, ok := y.Usable(yMonths[j])
		if !ok {
			continue
		}
		xVals = append(xVals, xVal)
		yVals = append(yVals, yVal)
	}
	return xVals, yVals
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// sortResults orders results by |r| descending, breaking ties by entity ids so the output does
// not depend on input order.
func sortResults(results []*Result) {
	slices.SortStableFunc(results, func(a, b *Result) int {
		switch {
		case a.AbsR() > b.AbsR():
			return -1
		case a.AbsR() < b.AbsR():
			return 1
		}
		if a.SeriesB != b.SeriesB {
			if a.SeriesB < b.SeriesB {
				return -1
			}
			return 1
		}
		if a.SeriesA < b.SeriesA {
			return -1
		}
		if a.SeriesA > b.SeriesA {
			return 1
		}
		return 0
	})
}
