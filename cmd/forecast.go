package cmd

import (
	"io"

	"github.com/ledgerpulse/go-forecaster"
	"github.com/ledgerpulse/go-forecaster/internal/output"
	"github.com/spf13/cobra"
)

// forecastCmd projects every input series forward.
var forecastCmd = &cobra.Command{
	Use:   "forecast [input-files...]",
	Short: "Forecast each input series with compound growth and seasonality.",
	Long: `Project every monthly series forward by its compound monthly growth rate (CMGR),
adjusted by the month over month seasonal transitions seen in its trailing history.

Series with fewer than three usable observations get an empty forecast. CMGR overrides
and manual month values can be supplied with --adjustments, a JSON list such as:

  [{"type": "cmgr_override", "entity_id": "stripe:pro", "value": 5},
   {"type": "manual_override", "entity_id": "stripe:pro", "month": "2025-03", "value": 12000}]

Examples:
  # Forecast twelve months after the latest observation
  forecaster forecast revenue.csv

  # Forecast six months from a fixed start as JSON
  forecaster forecast revenue.csv --start 2025-01 --horizon 6 --output json

  # Apply overrides and normalize by business days
  forecaster forecast export.json --adjustments overrides.json --business-days`,
	PreRunE: inputSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		series, err := loadSeries()
		if err != nil {
			return err
		}
		adjs, err := loadAdjustments()
		if err != nil {
			return err
		}

		f := forecaster.New(cfg.ForecasterOptions(), nil)
		res, err := f.Forecast(series, cfg.Start, cfg.Horizon, adjs)
		if err != nil {
			return err
		}
		return output.WriteWithFile(cfg.OutputFile, func(w io.Writer) error {
			return output.WriteForecast(w, res, cfg)
		}, "Wrote forecast")
	},
}

// backtestCmd scores the forecast method against held out history.
var backtestCmd = &cobra.Command{
	Use:   "backtest [input-files...]",
	Short: "Score forecasts against the most recent observations of each series.",
	Long: `Hold out the last observations of each series, forecast them from the remaining
history and report MAPE, MSE and R squared of the forecast against what was observed.

Series without enough history left after the holdout are skipped.

Examples:
  # Hold out the default three months
  forecaster backtest revenue.csv

  # Hold out six months and export the predicted and actual values
  forecaster backtest revenue.csv --holdout 6 --output csv --output-file backtest.csv`,
	PreRunE: inputSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		series, err := loadSeries()
		if err != nil {
			return err
		}

		f := forecaster.New(cfg.ForecasterOptions(), nil)
		res, err := f.Backtest(series, cfg.Holdout)
		if err != nil {
			return err
		}
		return output.WriteWithFile(cfg.OutputFile, func(w io.Writer) error {
			return output.WriteBacktest(w, res, cfg)
		}, "Wrote backtest")
	},
}
