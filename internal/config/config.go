// Package config turns the raw command line, environment and config file inputs into a
// validated configuration for the forecaster CLI.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/ledgerpulse/go-forecaster"
	"github.com/ledgerpulse/go-forecaster/calendar"
	"github.com/ledgerpulse/go-forecaster/correlation"
	"github.com/ledgerpulse/go-forecaster/forecast"
	"github.com/ledgerpulse/go-forecaster/seasonal"
	"github.com/ledgerpulse/go-forecaster/timeseries"
	"github.com/ledgerpulse/go-forecaster/version"
)

// Default values for configuration.
const (
	DefaultBackend      = "sqlite"
	DefaultSQLiteDSN    = "forecaster.db"
	DefaultOrganization = "default"
	DefaultPrecision    = 2
	MaxPrecision        = 6
	MaxHorizon          = 120
)

// MemoryBackend keeps versions for the lifetime of a single command.
const MemoryBackend = "memory"

var ErrMissingDSN = errors.New("database connection string is required")

// OutputMode selects how command results are rendered.
type OutputMode string

const (
	TableOut OutputMode = "table"
	JSONOut  OutputMode = "json"
	CSVOut   OutputMode = "csv"
)

// ValidOutputModes holds every accepted output mode.
var ValidOutputModes = map[OutputMode]struct{}{
	TableOut: {},
	JSONOut:  {},
	CSVOut:   {},
}

// ExportFormat selects the file format of a version export.
type ExportFormat string

const (
	ParquetExport ExportFormat = "parquet"
	JSONExport    ExportFormat = "json"
)

// DefaultWorkers is the default number of pairwise correlations run in parallel.
var DefaultWorkers = runtime.NumCPU()

// RawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type RawInput struct {
	// Set from positional args when a command takes input files, so no tag
	Args []string

	// --- Fields from rootCmd.PersistentFlags() ---
	Input        string `mapstructure:"input"`
	Entities     string `mapstructure:"entities"`
	Backend      string `mapstructure:"backend"`
	DSN          string `mapstructure:"dsn"`
	RedisURL     string `mapstructure:"redis-url"`
	Organization string `mapstructure:"org"`
	Output       string `mapstructure:"output"`
	OutputFile   string `mapstructure:"output-file"`
	Precision    int    `mapstructure:"precision"`
	Color        string `mapstructure:"color"`
	Verbose      bool   `mapstructure:"verbose"`

	// --- Forecast flags ---
	Start          string `mapstructure:"start"`
	Horizon        int    `mapstructure:"horizon"`
	Holdout        int    `mapstructure:"holdout"`
	Adjustments    string `mapstructure:"adjustments"`
	PinOverrides   bool   `mapstructure:"pin-overrides"`
	BusinessDays   bool   `mapstructure:"business-days"`
	TrailingMonths int    `mapstructure:"trailing-months"`

	// --- Correlation flags ---
	Alignment        string  `mapstructure:"alignment"`
	MaxLag           int     `mapstructure:"max-lag"`
	Lag              string  `mapstructure:"lag"`
	MinPredictorR    float64 `mapstructure:"min-predictor-r"`
	MaxPredictors    int     `mapstructure:"max-predictors"`
	ClusterThreshold float64 `mapstructure:"cluster-threshold"`
	Workers          int     `mapstructure:"workers"`

	// --- Version flags ---
	Name          string `mapstructure:"name"`
	Notes         string `mapstructure:"notes"`
	CreatedBy     string `mapstructure:"created-by"`
	Status        string `mapstructure:"status"`
	Format        string `mapstructure:"format"`
	TargetVersion int    `mapstructure:"target-version"`
}

// Config holds the validated configuration.
type Config struct {
	Inputs   []string
	Entities []string

	// InMemory is set for the memory backend, in which case Backend and DSN are unused.
	InMemory     bool
	Backend      version.Backend
	DSN          string
	RedisURL     string
	Organization string

	Output     OutputMode
	OutputFile string
	Precision  int
	UseColors  bool
	Verbose    bool

	// Start is zero when the forecast should begin after the latest observation.
	Start           timeseries.Month
	Horizon         int
	Holdout         int
	AdjustmentsFile string
	PinOverrides    bool
	BusinessDays    bool
	TrailingMonths  int

	Alignment correlation.Alignment
	MaxLag    int

	// Lag is nil when the optimal lag should be searched.
	Lag              *int
	MinPredictorR    float64
	MaxPredictors    int
	ClusterThreshold float64
	Workers          int

	Name          string
	Notes         string
	CreatedBy     string
	Status        version.Status
	Format        ExportFormat
	TargetVersion int
}

// ProcessAndValidate reads from input and populates cfg.
func ProcessAndValidate(cfg *Config, input *RawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackend(cfg, input); err != nil {
		return err
	}
	if err := processForecastInputs(cfg, input); err != nil {
		return err
	}
	if err := processCorrelationInputs(cfg, input); err != nil {
		return err
	}
	return processVersionInputs(cfg, input)
}

// ParseBoolString parses yes/no style booleans.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "on":
		return true, nil
	case "no", "false", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}

// splitList splits a comma separated list, dropping blank entries.
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validateSimpleInputs processes and validates the output and input selection fields.
func validateSimpleInputs(cfg *Config, input *RawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Verbose = input.Verbose
	cfg.Entities = splitList(input.Entities)

	cfg.Inputs = splitList(input.Input)
	for _, arg := range input.Args {
		cfg.Inputs = append(cfg.Inputs, splitList(arg)...)
	}

	cfg.UseColors = true
	if input.Color != "" {
		colors, err := ParseBoolString(input.Color)
		if err != nil {
			return fmt.Errorf("invalid --color value: %w", err)
		}
		cfg.UseColors = colors
	}

	if input.Precision < 0 || input.Precision > MaxPrecision {
		return fmt.Errorf("precision must be between 0 and %d (received %d)", MaxPrecision, input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = OutputMode(strings.ToLower(input.Output))
	if cfg.Output == "" {
		cfg.Output = TableOut
	}
	if _, ok := ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be table, json, csv", input.Output)
	}

	cfg.Organization = strings.TrimSpace(input.Organization)
	if cfg.Organization == "" {
		cfg.Organization = DefaultOrganization
	}
	return nil
}

// validateBackend resolves the version store backend and its connection string.
func validateBackend(cfg *Config, input *RawInput) error {
	cfg.RedisURL = strings.TrimSpace(input.RedisURL)
	if cfg.RedisURL != "" && !strings.HasPrefix(cfg.RedisURL, "redis://") && !strings.HasPrefix(cfg.RedisURL, "rediss://") {
		return fmt.Errorf("redis url must start with redis:// or rediss:// (received %q)", cfg.RedisURL)
	}

	name := strings.ToLower(strings.TrimSpace(input.Backend))
	if name == "" {
		name = DefaultBackend
	}
	if name == MemoryBackend {
		cfg.InMemory = true
		return nil
	}

	backend, err := version.ParseBackend(name)
	if err != nil {
		return fmt.Errorf("invalid backend '%s'. must be memory, sqlite, postgres, mysql: %w", input.Backend, err)
	}
	cfg.Backend = backend
	cfg.DSN = input.DSN

	switch backend {
	case version.SQLiteBackend:
		if cfg.DSN == "" {
			cfg.DSN = DefaultSQLiteDSN
		}
	case version.MySQLBackend:
		if cfg.DSN == "" {
			return fmt.Errorf("%s backend: %w", backend, ErrMissingDSN)
		}
		if !strings.Contains(cfg.DSN, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case version.PostgresBackend:
		if cfg.DSN == "" {
			return fmt.Errorf("%s backend: %w", backend, ErrMissingDSN)
		}
	}
	return nil
}

// processForecastInputs validates the forecast window and adjustment options.
func processForecastInputs(cfg *Config, input *RawInput) error {
	if s := strings.TrimSpace(input.Start); s != "" {
		start, err := timeseries.ParseMonth(s)
		if err != nil {
			return fmt.Errorf("invalid --start value: %w", err)
		}
		cfg.Start = start
	}

	if input.Horizon < 0 || input.Horizon > MaxHorizon {
		return fmt.Errorf("horizon must be between 0 and %d (received %d)", MaxHorizon, input.Horizon)
	}
	cfg.Horizon = input.Horizon

	if input.Holdout < 0 {
		return fmt.Errorf("holdout cannot be negative (received %d)", input.Holdout)
	}
	cfg.Holdout = input.Holdout

	if input.TrailingMonths < 0 {
		return fmt.Errorf("trailing months cannot be negative (received %d)", input.TrailingMonths)
	}
	cfg.TrailingMonths = input.TrailingMonths

	cfg.AdjustmentsFile = strings.TrimSpace(input.Adjustments)
	cfg.PinOverrides = input.PinOverrides
	cfg.BusinessDays = input.BusinessDays
	return nil
}

// processCorrelationInputs validates the lag search, predictor and clustering options.
func processCorrelationInputs(cfg *Config, input *RawInput) error {
	alignment, err := correlation.ParseAlignment(strings.ToLower(input.Alignment))
	if err != nil {
		return fmt.Errorf("invalid --alignment value: %w", err)
	}
	cfg.Alignment = alignment

	if input.MaxLag < 0 {
		return fmt.Errorf("max lag cannot be negative (received %d)", input.MaxLag)
	}
	cfg.MaxLag = input.MaxLag

	if s := strings.TrimSpace(input.Lag); s != "" {
		lag, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid --lag value %q: %w", s, err)
		}
		cfg.Lag = &lag
	}

	if input.MinPredictorR < 0 || input.MinPredictorR > 1 {
		return fmt.Errorf("min predictor r must be between 0 and 1 (received %g)", input.MinPredictorR)
	}
	cfg.MinPredictorR = input.MinPredictorR

	if input.ClusterThreshold < 0 || input.ClusterThreshold > 1 {
		return fmt.Errorf("cluster threshold must be between 0 and 1 (received %g)", input.ClusterThreshold)
	}
	cfg.ClusterThreshold = input.ClusterThreshold

	if input.MaxPredictors < 0 {
		return fmt.Errorf("max predictors cannot be negative (received %d)", input.MaxPredictors)
	}
	cfg.MaxPredictors = input.MaxPredictors

	if input.Workers < 0 {
		return fmt.Errorf("workers cannot be negative (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	return nil
}

// processVersionInputs validates the version metadata, listing and export options.
func processVersionInputs(cfg *Config, input *RawInput) error {
	cfg.Name = input.Name
	cfg.Notes = input.Notes
	cfg.CreatedBy = input.CreatedBy
	cfg.TargetVersion = input.TargetVersion

	status, err := version.ParseStatus(strings.ToLower(input.Status))
	if err != nil {
		return fmt.Errorf("invalid --status value: %w", err)
	}
	cfg.Status = status

	switch ExportFormat(strings.ToLower(input.Format)) {
	case ParquetExport, "":
		cfg.Format = ParquetExport
	case JSONExport:
		cfg.Format = JSONExport
	default:
		return fmt.Errorf("invalid export format '%s'. must be parquet, json", input.Format)
	}
	return nil
}

// ForecasterOptions builds the forecaster options described by the configuration.
func (c *Config) ForecasterOptions() *forecaster.Options {
	fopt := forecast.NewDefaultOptions()
	if c.TrailingMonths > 0 {
		fopt.TrailingMonths = c.TrailingMonths
	}
	fopt.PinOverrides = c.PinOverrides
	if c.BusinessDays {
		fopt.Calendar = calendar.NewUS()
	}

	copt := correlation.NewDefaultOptions()
	copt.Alignment = c.Alignment
	copt.MaxLag = c.MaxLag
	copt.MinPredictorR = c.MinPredictorR
	copt.MaxPredictors = c.MaxPredictors
	copt.ClusterThreshold = c.ClusterThreshold
	copt.Parallelization = c.Workers

	opt := forecaster.NewDefaultOptions()
	opt.ForecastOptions = fopt
	opt.CorrelationOptions = copt
	if c.Horizon > 0 {
		opt.Horizon = c.Horizon
	}
	if c.Holdout > 0 {
		opt.BacktestHoldout = c.Holdout
	}
	return opt
}

// Defaults returns the raw input matching the flag defaults. It is used to seed viper and in
// tests.
func Defaults() *RawInput {
	return &RawInput{
		Backend:          DefaultBackend,
		Organization:     DefaultOrganization,
		Output:           string(TableOut),
		Precision:        DefaultPrecision,
		Color:            "yes",
		Horizon:          forecaster.DefaultHorizon,
		Holdout:          forecaster.DefaultBacktestHoldout,
		TrailingMonths:   seasonal.DefaultTrailingMonths,
		Alignment:        string(correlation.AlignCalendar),
		MaxLag:           correlation.DefaultMaxLag,
		MinPredictorR:    correlation.DefaultMinPredictorR,
		MaxPredictors:    correlation.DefaultMaxPredictors,
		ClusterThreshold: correlation.DefaultClusterThreshold,
		Workers:          DefaultWorkers,
		Format:           string(ParquetExport),
		TargetVersion:    -1,
	}
}
