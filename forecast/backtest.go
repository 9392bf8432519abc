package forecast

import (
	"fmt"

	"github.com/ledgerpulse/go-forecaster/stats"
	"github.com/ledgerpulse/go-forecaster/timeseries"
)

// BacktestResult compares a forecast made from truncated history with the observations that
// were held out.
type BacktestResult struct {
	EntityID  string             `json:"entity_id"`
	Cutoff    timeseries.Month   `json:"cutoff"`
	Months    []timeseries.Month `json:"months"`
	Predicted []float64          `json:"predicted"`
	Actual    []float64          `json:"actual"`
	Scores    *stats.Scores      `json:"scores"`
}

// Backtest holds out the last holdout usable observations of ts, forecasts them from the
// remaining history and scores the forecast against what was observed.
func (g *Generator) Backtest(ts *timeseries.TimeSeries, holdout int) (*BacktestResult, error) {
	if ts == nil {
		return nil, ErrNilSeries
	}
	if holdout <= 0 {
		return nil, fmt.Errorf("holdout of %d, %w", holdout, ErrInvalidHorizon)
	}

	usable := ts.UsableMonths()
	if len(usable)-holdout < g.opt.minPoints() {
		return nil, fmt.Errorf("%d usable points with %d held out, %w", len(usable), holdout, ErrInsufficientHistory)
	}

	held := usable[len(usable)-holdout:]
	cutoff := usable[len(usable)-holdout-1]
	first := usable[0]
	train := ts.Slice(first, cutoff)

	start := cutoff.Add(1)
	horizon := held[len(held)-1].Sub(cutoff)
	res, err := g.Generate(train, start, horizon, nil)
	if err != nil {
		return nil, err
	}

	bt := &BacktestResult{
		EntityID:  ts.EntityID,
		Cutoff:    cutoff,
		Months:    held,
		Predicted: make([]float64, len(held)),
		Actual:    make([]float64, len(held)),
	}
	for i, m := range held {
		bt.Predicted[i] = res.Forecast[m]
		bt.Actual[i] = ts.Values[m]
	}

	scores, err := stats.NewScores(bt.Predicted, bt.Actual)
	if err != nil {
		return nil, fmt.Errorf("unable to score backtest of %s, %w", ts.EntityID, err)
	}
	bt.Scores = scores
	return bt, nil
}
