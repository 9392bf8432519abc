package forecaster

import (
	"fmt"
	"io"

	"github.com/ledgerpulse/go-forecaster/forecast"
	"github.com/ledgerpulse/go-forecaster/timeseries"
)

// Results holds the forecasts of every series of a single request.
type Results struct {
	Start     timeseries.Month   `json:"start"`
	Horizon   int                `json:"horizon"`
	Forecasts []*forecast.Result `json:"forecasts"`
}

// Result returns the forecast of an entity.
func (r *Results) Result(entityID string) (*forecast.Result, bool) {
	for _, res := range r.Forecasts {
		if res.EntityID == entityID {
			return res, true
		}
	}
	return nil, false
}

// Total returns the sum of every forecast value.
func (r *Results) Total() float64 {
	var total float64
	for _, res := range r.Forecasts {
		total += res.Total()
	}
	return total
}

// TablePrint writes each forecast followed by the overall total.
func (r *Results) TablePrint(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Forecast from %s for %d months\n", r.Start, r.Horizon); err != nil {
		return err
	}
	for _, res := range r.Forecasts {
		if err := res.TablePrint(w, "", "  "); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Total: %.2f\n", r.Total())
	return err
}
