// Package cmd defines the command-line interface for forecaster.
package cmd

import (
	"github.com/ledgerpulse/go-forecaster/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(correlateCmd)
	rootCmd.AddCommand(predictorsCmd)
	rootCmd.AddCommand(clustersCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(plotCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the versions subcommands to the parent versions command
	versionsCmd.AddCommand(versionsCreateCmd)
	versionsCmd.AddCommand(versionsListCmd)
	versionsCmd.AddCommand(versionsShowCmd)
	versionsCmd.AddCommand(versionsPublishCmd)
	versionsCmd.AddCommand(versionsArchiveCmd)
	versionsCmd.AddCommand(versionsCompareCmd)
	versionsCmd.AddCommand(versionsExportCmd)

	d := config.Defaults()

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().StringP("input", "i", "", "Comma-separated list of .json or .csv input files")
	rootCmd.PersistentFlags().StringP("entities", "e", "", "Comma-separated list of entity ids to keep")
	rootCmd.PersistentFlags().String("backend", d.Backend, "Version store backend: memory or sqlite or postgres or mysql")
	rootCmd.PersistentFlags().String("dsn", "", "Database connection string (defaults to forecaster.db for sqlite)")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis URL used to number versions, e.g. redis://localhost:6379/0")
	rootCmd.PersistentFlags().String("org", d.Organization, "Organization the versions belong to")
	rootCmd.PersistentFlags().StringP("output", "o", d.Output, "Output format: table or json or csv")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", d.Precision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().String("color", d.Color, "Enable colored output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug details to stderr")
	rootCmd.PersistentFlags().String("start", "", "First forecast month as YYYY-MM (defaults to the month after the latest data)")
	rootCmd.PersistentFlags().Int("horizon", d.Horizon, "Number of months to forecast")
	rootCmd.PersistentFlags().String("adjustments", "", "Path to a JSON file of CMGR and manual overrides")
	rootCmd.PersistentFlags().Bool("pin-overrides", false, "Keep manual overrides out of the growth chain")
	rootCmd.PersistentFlags().Bool("business-days", false, "Project values per US business day")
	rootCmd.PersistentFlags().Int("trailing-months", d.TrailingMonths, "History window used for seasonal transitions")
	rootCmd.PersistentFlags().String("alignment", d.Alignment, "Pairing of series points: calendar or index")
	rootCmd.PersistentFlags().Int("max-lag", d.MaxLag, "Largest lag in months searched when correlating")
	rootCmd.PersistentFlags().Float64("min-predictor-r", d.MinPredictorR, "Minimum |r| for a predictor to be reported")
	rootCmd.PersistentFlags().Int("max-predictors", d.MaxPredictors, "Maximum number of predictors reported")
	rootCmd.PersistentFlags().Float64("cluster-threshold", d.ClusterThreshold, "Minimum |r| linking two series in a cluster")
	rootCmd.PersistentFlags().Int("workers", d.Workers, "Number of correlations computed in parallel")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		logFatal("Error binding root flags", err)
	}

	// Bind all flags of backtestCmd to Viper
	backtestCmd.Flags().Int("holdout", d.Holdout, "Number of trailing observations held out")
	if err := viper.BindPFlags(backtestCmd.Flags()); err != nil {
		logFatal("Error binding backtest flags", err)
	}

	// Bind all flags of correlateCmd to Viper
	correlateCmd.Flags().String("lag", "", "Correlate at this lag in months instead of searching for the best one")
	if err := viper.BindPFlags(correlateCmd.Flags()); err != nil {
		logFatal("Error binding correlate flags", err)
	}

	// Bind all flags of versionsCreateCmd to Viper
	versionsCreateCmd.Flags().String("name", "", "Name of the version")
	versionsCreateCmd.Flags().String("notes", "", "Free form notes stored with the version")
	versionsCreateCmd.Flags().String("created-by", "", "Author of the version")
	if err := viper.BindPFlags(versionsCreateCmd.Flags()); err != nil {
		logFatal("Error binding versions create flags", err)
	}

	// Bind all flags of versionsListCmd to Viper
	versionsListCmd.Flags().String("status", "", "Only list versions in this status: draft or published or archived")
	if err := viper.BindPFlags(versionsListCmd.Flags()); err != nil {
		logFatal("Error binding versions list flags", err)
	}

	// Bind all flags of versionsExportCmd to Viper
	versionsExportCmd.Flags().String("format", d.Format, "Export format: parquet or json")
	if err := viper.BindPFlags(versionsExportCmd.Flags()); err != nil {
		logFatal("Error binding versions export flags", err)
	}

	// Bind all flags of migrateCmd to Viper
	migrateCmd.Flags().Int("target-version", d.TargetVersion, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(migrateCmd.Flags()); err != nil {
		logFatal("Error binding migrate flags", err)
	}
}
