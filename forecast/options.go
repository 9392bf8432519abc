package forecast

import (
	"github.com/ledgerpulse/go-forecaster/calendar"
	"github.com/ledgerpulse/go-forecaster/seasonal"
	"github.com/ledgerpulse/go-forecaster/stats"
)

// Options configures how a series is projected forward.
type Options struct {
	// TrailingMonths is the size of the history window used for seasonal transitions.
	TrailingMonths int `json:"trailing_months"`

	// MinPoints is the minimum number of usable observations before any forecast is made.
	MinPoints int `json:"min_points"`

	// PinOverrides keeps manual overrides out of the compounding chain. By default a manual
	// override becomes the base that later months grow from.
	PinOverrides bool `json:"pin_overrides"`

	// Calendar, when set, projects values per business day and scales each forecast month by
	// its own business day count.
	Calendar *calendar.BusinessCalendar `json:"-"`
}

// NewDefaultOptions returns the default forecast options
func NewDefaultOptions() *Options {
	return &Options{
		TrailingMonths: seasonal.DefaultTrailingMonths,
		MinPoints:      stats.MinGrowthPoints,
	}
}

func (o *Options) trailingMonths() int {
	if o.TrailingMonths <= 0 {
		return seasonal.DefaultTrailingMonths
	}
	return o.TrailingMonths
}

func (o *Options) minPoints() int {
	if o.MinPoints <= 0 {
		return stats.MinGrowthPoints
	}
	return o.MinPoints
}
