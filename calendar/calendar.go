// Package calendar counts business days per month so monthly totals can be compared on a per
// working day basis.
package calendar

import (
	"sync"
	"time"

	"github.com/ledgerpulse/go-forecaster/timeseries"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// BusinessCalendar reports working days per month. Results are memoized since forecasts ask
// for the same handful of months repeatedly. A BusinessCalendar is safe for concurrent use.
type BusinessCalendar struct {
	cal *cal.BusinessCalendar

	mu    sync.RWMutex
	cache map[timeseries.Month]int
}

// New creates a business calendar with weekends off and the given holidays observed.
func New(holidays ...*cal.Holiday) *BusinessCalendar {
	c := cal.NewBusinessCalendar()
	c.AddHoliday(holidays...)
	return &BusinessCalendar{
		cal:   c,
		cache: make(map[timeseries.Month]int),
	}
}

// NewUS creates a business calendar observing US federal holidays.
func NewUS() *BusinessCalendar {
	return New(us.Holidays...)
}

// BusinessDays returns the number of working days in the month.
func (b *BusinessCalendar) BusinessDays(m timeseries.Month) int {
	b.mu.RLock()
	days, exists := b.cache[m]
	b.mu.RUnlock()
	if exists {
		return days
	}

	start := m.Time()
	end := m.Add(1).Time()
	for d := start; d.Before(end); d = d.Add(24 * time.Hour) {
		if b.cal.IsWorkday(d) {
			days++
		}
	}
	b.mu.Lock()
	b.cache[m] = days
	b.mu.Unlock()
	return days
}

// Normalize divides every value of the series by the business days of its month. Months
// without any working days keep their raw value.
func (b *BusinessCalendar) Normalize(ts *timeseries.TimeSeries) *timeseries.TimeSeries {
	normalized := ts.Copy()
	for m, val := range normalized.Values {
		if days := b.BusinessDays(m); days > 0 {
			normalized.Values[m] = val / float64(days)
		}
	}
	normalized.Recompute()
	return normalized
}

// Scale converts a per business day value back into a monthly total.
func (b *BusinessCalendar) Scale(m timeseries.Month, perDay float64) float64 {
	days := b.BusinessDays(m)
	if days == 0 {
		return perDay
	}
	return perDay * float64(days)
}
