package version

import (
	"slices"

	"github.com/ledgerpulse/go-forecaster/timeseries"
)

// Delta is the change of a single quantity between two versions.
type Delta struct {
	From   float64 `json:"from"`
	To     float64 `json:"to"`
	Change float64 `json:"change"`

	// PercentChange is relative to From and is 0 when From is 0.
	PercentChange float64 `json:"percent_change"`
}

func newDelta(from, to float64) Delta {
	d := Delta{From: from, To: to, Change: to - from}
	if from != 0 {
		d.PercentChange = d.Change / from * 100.0
	}
	return d
}

// MonthDelta is the forecast change of one month of one entity.
type MonthDelta struct {
	Month timeseries.Month `json:"month"`
	Delta
}

// EntityDelta compares an entity across two versions. An entity only present in one version
// is compared against zeros.
type EntityDelta struct {
	EntityID      string       `json:"entity_id"`
	InFrom        bool         `json:"in_from"`
	InTo          bool         `json:"in_to"`
	ForecastTotal Delta        `json:"forecast_total"`
	CMGR          Delta        `json:"cmgr"`
	Months        []MonthDelta `json:"months"`
}

// Comparison holds the differences between two versions.
type Comparison struct {
	FromID     string `json:"from_id"`
	ToID       string `json:"to_id"`
	FromNumber int    `json:"from_number"`
	ToNumber   int    `json:"to_number"`

	HistoricalTotal    Delta `json:"historical_total"`
	ForecastedTotal    Delta `json:"forecasted_total"`
	AvgMonthlyForecast Delta `json:"avg_monthly_forecast"`
	GrowthRate         Delta `json:"growth_rate"`

	Entities []EntityDelta `json:"entities"`
}

// Compare reports how to differs from from. Entities are ordered by id.
func Compare(from, to *Version) *Comparison {
	c := &Comparison{
		FromID:             from.ID,
		ToID:               to.ID,
		FromNumber:         from.Number,
		ToNumber:           to.Number,
		HistoricalTotal:    newDelta(from.Summary.HistoricalTotal, to.Summary.HistoricalTotal),
		ForecastedTotal:    newDelta(from.Summary.ForecastedTotal, to.Summary.ForecastedTotal),
		AvgMonthlyForecast: newDelta(from.Summary.AvgMonthlyForecast, to.Summary.AvgMonthlyForecast),
		GrowthRate:         newDelta(from.Summary.GrowthRate, to.Summary.GrowthRate),
	}

	ids := make(map[string]struct{})
	for _, e := range from.Entities {
		ids[e.EntityID] = struct{}{}
	}
	for _, e := range to.Entities {
		ids[e.EntityID] = struct{}{}
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	slices.Sort(sorted)

	for _, id := range sorted {
		a, inFrom := from.Entity(id)
		b, inTo := to.Entity(id)
		ed := EntityDelta{
			EntityID:      id,
			InFrom:        inFrom,
			InTo:          inTo,
			ForecastTotal: newDelta(a.ForecastTotal, b.ForecastTotal),
			CMGR:          newDelta(a.CMGR, b.CMGR),
		}

		months := make(timeseries.Values)
		for m := range a.Forecast {
			months[m] = 0
		}
		for m := range b.Forecast {
			months[m] = 0
		}
		for _, m := range months.Months() {
			ed.Months = append(ed.Months, MonthDelta{Month: m, Delta: newDelta(a.Forecast[m], b.Forecast[m])})
		}
		c.Entities = append(c.Entities, ed)
	}
	return c
}
