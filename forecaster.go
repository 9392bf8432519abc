// Package forecaster projects monthly business series forward and relates series to each other.
// A Forecaster combines the forecast generator, the correlation analyzer and a version store
// behind a single entry point.
package forecaster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledgerpulse/go-forecaster/correlation"
	"github.com/ledgerpulse/go-forecaster/forecast"
	"github.com/ledgerpulse/go-forecaster/timeseries"
	"github.com/ledgerpulse/go-forecaster/version"
)

var (
	ErrNoSeries        = errors.New("no time series provided")
	ErrDuplicateEntity = errors.New("duplicate entity id in request")
	ErrNoStartMonth    = errors.New("cannot infer a start month from series without data")
)

// Forecaster generates forecasts, stores them as versions and analyzes relationships between
// series.
type Forecaster struct {
	opt *Options

	generator *forecast.Generator
	analyzer  *correlation.Analyzer
	store     version.Store
}

// New creates a new instance of a Forecaster using the provided options and store. If no
// options are provided a default is used, and without a store versions are kept in memory.
func New(opt *Options, store version.Store) *Forecaster {
	if opt == nil {
		opt = NewDefaultOptions()
	}
	if store == nil {
		store = version.NewMemoryStore(nil)
	}
	return &Forecaster{
		opt:       opt,
		generator: forecast.New(opt.ForecastOptions),
		analyzer:  correlation.New(opt.CorrelationOptions),
		store:     store,
	}
}

// Options returns the options of the forecaster.
func (f *Forecaster) Options() *Options {
	return f.opt
}

// Store returns the version store.
func (f *Forecaster) Store() version.Store {
	return f.store
}

// Close releases the version store.
func (f *Forecaster) Close() error {
	return f.store.Close()
}

// NextMonth returns the month after the latest observation across all series.
func NextMonth(series []*timeseries.TimeSeries) (timeseries.Month, error) {
	var latest timeseries.Month
	var found bool
	for _, ts := range series {
		if ts == nil {
			continue
		}
		months := ts.Months()
		if len(months) == 0 {
			continue
		}
		if last := months[len(months)-1]; !found || last > latest {
			latest = last
			found = true
		}
	}
	if !found {
		return 0, ErrNoStartMonth
	}
	return latest.Add(1), nil
}

func checkSeries(series []*timeseries.TimeSeries) error {
	if len(series) == 0 {
		return ErrNoSeries
	}
	seen := make(map[string]struct{}, len(series))
	for i, ts := range series {
		if ts == nil {
			return fmt.Errorf("series %d, %w", i, forecast.ErrNilSeries)
		}
		if err := ts.Validate(); err != nil {
			return err
		}
		if _, exists := seen[ts.EntityID]; exists {
			return fmt.Errorf("%s, %w", ts.EntityID, ErrDuplicateEntity)
		}
		seen[ts.EntityID] = struct{}{}
	}
	return nil
}

// Forecast projects every series horizon months from start. A zero start begins the month after
// the latest observation and a horizon of zero uses the default horizon. Adjustments are
// validated once up front and applied to the entities they name.
func (f *Forecaster) Forecast(series []*timeseries.TimeSeries, start timeseries.Month, horizon int, adjs forecast.Adjustments) (*Results, error) {
	if err := checkSeries(series); err != nil {
		return nil, err
	}
	if err := adjs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid adjustments, %w", err)
	}
	if start == 0 {
		next, err := NextMonth(series)
		if err != nil {
			return nil, err
		}
		start = next
	}
	if horizon == 0 {
		horizon = f.opt.horizon()
	}

	res := &Results{
		Start:     start,
		Horizon:   horizon,
		Forecasts: make([]*forecast.Result, 0, len(series)),
	}
	for _, ts := range series {
		r, err := f.generator.Generate(ts, start, horizon, adjs)
		if err != nil {
			return nil, fmt.Errorf("unable to forecast %s, %w", ts.EntityID, err)
		}
		res.Forecasts = append(res.Forecasts, r)
	}
	return res, nil
}

// Backtest scores each series by forecasting its last holdout observations from the rest of
// its history. Series with too little history are skipped. A holdout of zero uses the default.
func (f *Forecaster) Backtest(series []*timeseries.TimeSeries, holdout int) ([]*forecast.BacktestResult, error) {
	if err := checkSeries(series); err != nil {
		return nil, err
	}
	if holdout == 0 {
		holdout = f.opt.backtestHoldout()
	}

	var res []*forecast.BacktestResult
	for _, ts := range series {
		bt, err := f.generator.Backtest(ts, holdout)
		if errors.Is(err, forecast.ErrInsufficientHistory) {
			slog.Warn("skipping backtest", "entity_id", ts.EntityID, "error", err.Error())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("unable to backtest %s, %w", ts.EntityID, err)
		}
		res = append(res, bt)
	}
	return res, nil
}

// BuildVersion forecasts the series for the request and assembles an unsaved draft version.
func (f *Forecaster) BuildVersion(req version.Request, series []*timeseries.TimeSeries) (*version.Version, error) {
	res, err := f.Forecast(series, req.Start, req.Horizon, req.Adjustments)
	if err != nil {
		return nil, err
	}
	req.Start = res.Start
	req.Horizon = res.Horizon
	return version.Build(req, series, res.Forecasts)
}

// CreateVersion forecasts the series and stores the result as the next draft version of the
// organization.
func (f *Forecaster) CreateVersion(ctx context.Context, req version.Request, series []*timeseries.TimeSeries) (*version.Version, error) {
	v, err := f.BuildVersion(req, series)
	if err != nil {
		return nil, err
	}
	created, err := f.store.Create(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("unable to store version, %w", err)
	}
	slog.Info("created forecast version",
		"organization_id", created.OrganizationID,
		"version_id", created.ID,
		"number", created.Number,
		"entities", len(created.Entities),
	)
	return created, nil
}

func (f *Forecaster) GetVersion(ctx context.Context, id string) (*version.Version, error) {
	return f.store.Get(ctx, id)
}

func (f *Forecaster) ListVersions(ctx context.Context, orgID string, status version.Status) ([]*version.Version, error) {
	return f.store.List(ctx, orgID, status)
}

func (f *Forecaster) ActiveVersion(ctx context.Context, orgID string) (*version.Version, error) {
	return f.store.Active(ctx, orgID)
}

// PublishVersion activates a version and demotes the previously active one.
func (f *Forecaster) PublishVersion(ctx context.Context, id string) (*version.Version, error) {
	v, err := f.store.Publish(ctx, id)
	if err != nil {
		return nil, err
	}
	slog.Info("published forecast version", "organization_id", v.OrganizationID, "version_id", v.ID, "number", v.Number)
	return v, nil
}

func (f *Forecaster) ArchiveVersion(ctx context.Context, id string) (*version.Version, error) {
	v, err := f.store.Archive(ctx, id)
	if err != nil {
		return nil, err
	}
	slog.Info("archived forecast version", "organization_id", v.OrganizationID, "version_id", v.ID, "number", v.Number)
	return v, nil
}

// CompareVersions reports how version toID differs from version fromID.
func (f *Forecaster) CompareVersions(ctx context.Context, fromID, toID string) (*version.Comparison, error) {
	from, err := f.store.Get(ctx, fromID)
	if err != nil {
		return nil, fmt.Errorf("unable to load version %s, %w", fromID, err)
	}
	to, err := f.store.Get(ctx, toID)
	if err != nil {
		return nil, fmt.Errorf("unable to load version %s, %w", toID, err)
	}
	return version.Compare(from, to), nil
}

// Correlate correlates x with y shifted by lag months. Returns nil with too few shared points.
func (f *Forecaster) Correlate(x, y *timeseries.TimeSeries, lag int) *correlation.Result {
	return f.analyzer.Correlate(x, y, lag)
}

// OptimalLag searches every lag within the configured bound for the strongest correlation.
func (f *Forecaster) OptimalLag(x, y *timeseries.TimeSeries) *correlation.Result {
	return f.analyzer.FindOptimalLag(x, y)
}

// Predictors ranks the candidates by how well they lead or track the target.
func (f *Forecaster) Predictors(target *timeseries.TimeSeries, candidates []*timeseries.TimeSeries) []*correlation.Result {
	return f.analyzer.RankPredictors(target, candidates)
}

// Clusters groups series that move together.
func (f *Forecaster) Clusters(series []*timeseries.TimeSeries) []correlation.Cluster {
	return f.analyzer.FindClusters(series)
}
