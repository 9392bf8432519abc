package cmd

import (
	"io"

	"github.com/ledgerpulse/go-forecaster"
	"github.com/ledgerpulse/go-forecaster/correlation"
	"github.com/ledgerpulse/go-forecaster/ingest"
	"github.com/ledgerpulse/go-forecaster/internal/output"
	"github.com/ledgerpulse/go-forecaster/timeseries"
	"github.com/spf13/cobra"
)

// correlateCmd correlates two series.
var correlateCmd = &cobra.Command{
	Use:   "correlate <entity-a> <entity-b>",
	Short: "Correlate two series at a fixed lag or at their best lag.",
	Long: `Compute the Pearson correlation between two series loaded with --input.

Without --lag every lag within --max-lag is tried and the strongest is reported. A
positive lag means the first series leads the second by that many months. Months are
paired by calendar date unless --alignment index is given.

Examples:
  # Find how far organic sessions lead revenue
  forecaster correlate ga:organic:sessions stripe:pro --input export.json

  # Correlate at a fixed two month lag
  forecaster correlate ga:organic:sessions stripe:pro --input export.json --lag 2`,
	Args:    cobra.ExactArgs(2),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, args []string) error {
		pair, err := loadEntities(args)
		if err != nil {
			return err
		}

		f := forecaster.New(cfg.ForecasterOptions(), nil)
		var res *correlation.Result
		if cfg.Lag != nil {
			res = f.Correlate(pair[0], pair[1], *cfg.Lag)
		} else {
			res = f.OptimalLag(pair[0], pair[1])
		}

		var results []*correlation.Result
		if res != nil {
			results = append(results, res)
		}
		return output.WriteWithFile(cfg.OutputFile, func(w io.Writer) error {
			return output.WriteCorrelations(w, results, cfg)
		}, "Wrote correlation")
	},
}

// predictorsCmd ranks candidate series against a target.
var predictorsCmd = &cobra.Command{
	Use:   "predictors <target> [candidates...]",
	Short: "Rank the series that best lead or track a target series.",
	Long: `Search the optimal lag of every candidate against the target and rank candidates by
|r|, dropping those below --min-predictor-r. Without explicit candidates every other
loaded series is a candidate.

Examples:
  # Rank every series against revenue
  forecaster predictors stripe:pro --input export.json

  # Only consider two traffic channels
  forecaster predictors stripe:pro ga:organic:sessions ga:paid:sessions --input export.json`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, args []string) error {
		series, err := loadSeries()
		if err != nil {
			return err
		}
		targets, err := ingest.Select(series, args[:1])
		if err != nil {
			return err
		}
		target := targets[0]

		var candidates []*timeseries.TimeSeries
		if len(args) > 1 {
			candidates, err = ingest.Select(series, args[1:])
			if err != nil {
				return err
			}
		} else {
			for _, ts := range series {
				if ts.EntityID != target.EntityID {
					candidates = append(candidates, ts)
				}
			}
		}

		f := forecaster.New(cfg.ForecasterOptions(), nil)
		res := f.Predictors(target, candidates)
		return output.WriteWithFile(cfg.OutputFile, func(w io.Writer) error {
			return output.WriteCorrelations(w, res, cfg)
		}, "Wrote predictors")
	},
}

// clustersCmd groups series that move together.
var clustersCmd = &cobra.Command{
	Use:   "clusters [input-files...]",
	Short: "Group series whose lag zero correlation reaches the cluster threshold.",
	Long: `Link every pair of series whose |r| reaches --cluster-threshold and report the
connected groups of two or more series, largest first.

Examples:
  # Cluster every loaded series
  forecaster clusters export.json

  # Require a strong relationship
  forecaster clusters export.json --cluster-threshold 0.7`,
	PreRunE: inputSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		series, err := loadSeries()
		if err != nil {
			return err
		}

		f := forecaster.New(cfg.ForecasterOptions(), nil)
		clusters := f.Clusters(series)
		return output.WriteWithFile(cfg.OutputFile, func(w io.Writer) error {
			return output.WriteClusters(w, clusters, cfg)
		}, "Wrote clusters")
	},
}

// loadEntities loads the series and returns the requested entities in order.
func loadEntities(ids []string) ([]*timeseries.TimeSeries, error) {
	series, err := loadSeries()
	if err != nil {
		return nil, err
	}
	return ingest.Select(series, ids)
}
