package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/ledgerpulse/go-forecaster"
	"github.com/ledgerpulse/go-forecaster/forecast"
	"github.com/ledgerpulse/go-forecaster/ingest"
	"github.com/ledgerpulse/go-forecaster/internal/config"
	"github.com/ledgerpulse/go-forecaster/timeseries"
	"github.com/ledgerpulse/go-forecaster/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var errNoInput = errors.New("no input files given, pass them as arguments or with --input")

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &config.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &config.RawInput{}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "forecaster",
	Short: "Forecast monthly business metrics and find the series that move together.",
	Long: `Forecaster projects monthly revenue, traffic and engagement series with compound
monthly growth and seasonality, keeps numbered forecast versions per organization and
correlates series to find leading indicators.`,
	Version:            buildVersion,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".forecaster")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.SetEnvPrefix("FORECASTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	d := config.Defaults()
	viper.SetDefault("backend", d.Backend)
	viper.SetDefault("org", d.Organization)
	viper.SetDefault("output", d.Output)
	viper.SetDefault("precision", d.Precision)
	viper.SetDefault("color", d.Color)
	viper.SetDefault("horizon", d.Horizon)
	viper.SetDefault("holdout", d.Holdout)
	viper.SetDefault("trailing-months", d.TrailingMonths)
	viper.SetDefault("alignment", d.Alignment)
	viper.SetDefault("max-lag", d.MaxLag)
	viper.SetDefault("min-predictor-r", d.MinPredictorR)
	viper.SetDefault("max-predictors", d.MaxPredictors)
	viper.SetDefault("cluster-threshold", d.ClusterThreshold)
	viper.SetDefault("workers", d.Workers)
	viper.SetDefault("format", d.Format)
	viper.SetDefault("target-version", d.TargetVersion)
}

// sharedSetup unmarshals config, runs validation and installs the logger.
func sharedSetup(_ context.Context, _ *cobra.Command, args []string) error {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	*input = config.RawInput{}
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Positional input files, which Viper doesn't handle.
	input.Args = args

	// 4. Run all validation and complex parsing.
	*cfg = config.Config{}
	if err := config.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	setupLogging(cfg.Verbose)
	return nil
}

// setupLogging writes text logs to stderr, including debug output when verbose.
func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// sharedSetupWrapper wraps sharedSetup for commands whose arguments are not input files.
func sharedSetupWrapper(cmd *cobra.Command, _ []string) error {
	return sharedSetup(rootCtx, cmd, nil)
}

// inputSetupWrapper wraps sharedSetup for commands that take input files as arguments.
func inputSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// loadSeries reads every configured input file and narrows the series to --entities.
func loadSeries() ([]*timeseries.TimeSeries, error) {
	if len(cfg.Inputs) == 0 {
		return nil, errNoInput
	}
	series, err := ingest.LoadFiles(cfg.Inputs...)
	if err != nil {
		return nil, err
	}
	return ingest.Select(series, cfg.Entities)
}

// loadAdjustments reads the adjustments file, if any.
func loadAdjustments() (forecast.Adjustments, error) {
	if cfg.AdjustmentsFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(cfg.AdjustmentsFile)
	if err != nil {
		return nil, fmt.Errorf("cannot read adjustments: %w", err)
	}
	var adjs forecast.Adjustments
	if err := json.Unmarshal(data, &adjs); err != nil {
		return nil, fmt.Errorf("invalid adjustments in %s: %w", cfg.AdjustmentsFile, err)
	}
	return adjs, nil
}

// openStore opens the configured version store. With a Redis URL, version numbers come from a
// Redis counter seeded from the store.
func openStore(ctx context.Context) (version.Store, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var seed version.SeedFunc
	var seq version.Sequencer
	if cfg.RedisURL != "" {
		rs, err := version.NewRedisSequencer(cfg.RedisURL, func(ctx context.Context, orgID string) (int, error) {
			return seed(ctx, orgID)
		})
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rs.Close() })
		seq = rs
	}

	if cfg.InMemory {
		store := version.NewMemoryStore(seq)
		seed = store.MaxNumber
		closers = append(closers, func() { _ = store.Close() })
		return store, cleanup, nil
	}

	store, err := version.OpenSQLStore(ctx, version.SQLOptions{
		Backend:   cfg.Backend,
		DSN:       cfg.DSN,
		Sequencer: seq,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	seed = store.MaxNumber
	closers = append(closers, func() { _ = store.Close() })
	slog.Debug("opened version store", "backend", cfg.Backend, "redis", cfg.RedisURL != "")
	return store, cleanup, nil
}

// openForecaster builds a forecaster over the configured version store.
func openForecaster(ctx context.Context) (*forecaster.Forecaster, func(), error) {
	store, cleanup, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return forecaster.New(cfg.ForecasterOptions(), store), cleanup, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
