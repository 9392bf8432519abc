package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ledgerpulse/go-forecaster"
	"github.com/ledgerpulse/go-forecaster/forecast"
	"github.com/ledgerpulse/go-forecaster/internal/config"
	"github.com/ledgerpulse/go-forecaster/timeseries"
)

// WriteForecast renders the forecast of every entity in a request.
func WriteForecast(w io.Writer, res *forecaster.Results, cfg *config.Config) error {
	f := formatters{precision: cfg.Precision}
	return dispatch(cfg,
		func() error { return writeForecastTable(w, res, f) },
		func() error { return writeJSON(w, res) },
		func() error { return writeForecastCSV(w, res, f) },
	)
}

// writeForecastTable prints one row per entity with a column per forecast month.
func writeForecastTable(w io.Writer, res *forecaster.Results, f formatters) error {
	months := timeseries.Range(res.Start, res.Horizon)

	headers := []string{"Entity", "CMGR"}
	for _, m := range months {
		headers = append(headers, m.String())
	}
	headers = append(headers, "Total")

	var data [][]string
	for _, r := range res.Forecasts {
		cmgr := f.percent(r.CMGR)
		if r.CMGROverridden {
			cmgr += " (override)"
		}
		row := []string{r.EntityID, cmgr}
		for _, m := range months {
			if val, exists := r.Forecast[m]; exists {
				row = append(row, f.float(val))
			} else {
				row = append(row, "-")
			}
		}
		row = append(row, f.float(r.Total()))
		data = append(data, row)
	}

	if err := writeTable(w, headers, data); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Forecast from %s for %d months, total %s\n", res.Start, res.Horizon, f.float(res.Total()))
	return err
}

// writeForecastCSV writes one row per entity month.
func writeForecastCSV(w io.Writer, res *forecaster.Results, f formatters) error {
	header := []string{"entity_id", "month", "value", "cmgr", "cmgr_overridden"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range res.Forecasts {
			for _, m := range r.Months() {
				row := []string{
					r.EntityID,
					m.String(),
					f.float(r.Forecast[m]),
					strconv.FormatFloat(r.CMGR, 'f', -1, 64),
					strconv.FormatBool(r.CMGROverridden),
				}
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("failed to write CSV row for %s: %w", r.EntityID, err)
				}
			}
		}
		return nil
	})
}

// WriteBacktest renders the accuracy of each backtested entity.
func WriteBacktest(w io.Writer, results []*forecast.BacktestResult, cfg *config.Config) error {
	f := formatters{precision: cfg.Precision}
	p := newPalette(cfg.UseColors)
	return dispatch(cfg,
		func() error { return writeBacktestTable(w, results, f, p) },
		func() error { return writeJSON(w, results) },
		func() error { return writeBacktestCSV(w, results, f) },
	)
}

func writeBacktestTable(w io.Writer, results []*forecast.BacktestResult, f formatters, p palette) error {
	headers := []string{"Entity", "Cutoff", "Points", "MAPE", "MSE", "R2"}

	var data [][]string
	for _, bt := range results {
		mape := f.percent(bt.Scores.MAPE)
		switch {
		case bt.Scores.MAPE <= 0.1:
			mape = p.green(mape)
		case bt.Scores.MAPE <= 0.25:
			mape = p.yellow(mape)
		default:
			mape = p.red(mape)
		}
		data = append(data, []string{
			bt.EntityID,
			bt.Cutoff.String(),
			strconv.Itoa(bt.Scores.N),
			mape,
			f.float(bt.Scores.MSE),
			f.float(bt.Scores.R2),
		})
	}

	if err := writeTable(w, headers, data); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Backtested %d series\n", len(results))
	return err
}

func writeBacktestCSV(w io.Writer, results []*forecast.BacktestResult, f formatters) error {
	header := []string{"entity_id", "month", "predicted", "actual"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, bt := range results {
			for i, m := range bt.Months {
				row := []string{bt.EntityID, m.String(), f.float(bt.Predicted[i]), f.float(bt.Actual[i])}
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("failed to write CSV row for %s: %w", bt.EntityID, err)
				}
			}
		}
		return nil
	})
}
