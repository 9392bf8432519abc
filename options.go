package forecaster

import (
	"github.com/ledgerpulse/go-forecaster/correlation"
	"github.com/ledgerpulse/go-forecaster/forecast"
)

const (
	DefaultHorizon         = 12
	DefaultBacktestHoldout = 3
)

// Options configures the forecasting and correlation engines along with the defaults used when
// a request leaves a field unset.
type Options struct {
	ForecastOptions    *forecast.Options    `json:"forecast_options"`
	CorrelationOptions *correlation.Options `json:"correlation_options"`

	// Horizon is the number of months forecast when a request does not specify one.
	Horizon int `json:"horizon"`

	// BacktestHoldout is the number of trailing observations held out when backtesting.
	BacktestHoldout int `json:"backtest_holdout"`
}

// NewDefaultOptions returns the default forecaster options
func NewDefaultOptions() *Options {
	return &Options{
		ForecastOptions:    forecast.NewDefaultOptions(),
		CorrelationOptions: correlation.NewDefaultOptions(),
		Horizon:            DefaultHorizon,
		BacktestHoldout:    DefaultBacktestHoldout,
	}
}

func (o *Options) horizon() int {
	if o.Horizon <= 0 {
		return DefaultHorizon
	}
	return o.Horizon
}

func (o *Options) backtestHoldout() int {
	if o.BacktestHoldout <= 0 {
		return DefaultBacktestHoldout
	}
	return o.BacktestHoldout
}
