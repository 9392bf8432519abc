package correlation

import (
	"errors"
	"fmt"
	"runtime"
)

var ErrUnknownAlignment = errors.New("unknown alignment")

// Alignment selects how points of two series are paired before correlating.
type Alignment string

const (
	// AlignCalendar pairs month m of the first series with month m+lag of the second.
	AlignCalendar Alignment = "calendar"

	// AlignIndex pairs points by position in each series' sorted months. Series with different
	// missing months will drift out of calendar alignment.
	AlignIndex Alignment = "index"
)

// ParseAlignment converts a name into an Alignment.
func ParseAlignment(s string) (Alignment, error) {
	switch Alignment(s) {
	case AlignCalendar, "":
		return AlignCalendar, nil
	case AlignIndex:
		return AlignIndex, nil
	}
	return "", fmt.Errorf("%q, %w", s, ErrUnknownAlignment)
}

const (
	DefaultMaxLag           = 6
	DefaultMinPoints        = 3
	DefaultMinPredictorR    = 0.3
	DefaultMaxPredictors    = 10
	DefaultClusterThreshold = 0.5
)

// Options configures correlation, predictor ranking and clustering.
type Options struct {
	// MaxLag bounds the lag search to [-MaxLag, MaxLag] months.
	MaxLag int `json:"max_lag"`

	// MinPoints is the minimum number of aligned usable pairs for a correlation.
	MinPoints int       `json:"min_points"`
	Alignment Alignment `json:"alignment"`

	// MinPredictorR drops predictors whose best |r| is below it.
	MinPredictorR float64 `json:"min_predictor_r"`
	MaxPredictors int     `json:"max_predictors"`

	// ClusterThreshold is the minimum |r| for two series to be linked in a cluster.
	ClusterThreshold float64 `json:"cluster_threshold"`

	// Parallelization sets how many pairwise correlations run in parallel.
	Parallelization int `json:"parallelization"`
}

// NewDefaultOptions returns the default correlation options
func NewDefaultOptions() *Options {
	return &Options{
		MaxLag:           DefaultMaxLag,
		MinPoints:        DefaultMinPoints,
		Alignment:        AlignCalendar,
		MinPredictorR:    DefaultMinPredictorR,
		MaxPredictors:    DefaultMaxPredictors,
		ClusterThreshold: DefaultClusterThreshold,
		Parallelization:  runtime.NumCPU(),
	}
}

func (o *Options) maxLag() int {
	if o.MaxLag < 0 {
		return 0
	}
	return o.MaxLag
}

func (o *Options) minPoints() int {
	if o.MinPoints < DefaultMinPoints {
		return DefaultMinPoints
	}
	return o.MinPoints
}

func (o *Options) parallelization(jobs int) int {
	p := o.Parallelization
	if p <= 0 || p > jobs {
		p = jobs
	}
	if p < 1 {
		p = 1
	}
	return p
}
