// Package version records forecasts as immutable, numbered versions per organization with a
// draft, published and archived lifecycle. At most one version per organization is active.
package version

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerpulse/go-forecaster/forecast"
	"github.com/ledgerpulse/go-forecaster/timeseries"
)

var (
	ErrNotFound                 = errors.New("forecast version not found")
	ErrNilVersion               = errors.New("forecast version is nil")
	ErrNoOrganization           = errors.New("forecast version has no organization id")
	ErrVersionConflict          = errors.New("forecast version number already taken")
	ErrActiveInvariantViolation = errors.New("more than one active forecast version")
	ErrInvalidTransition        = errors.New("invalid forecast version status transition")
	ErrUnknownStatus            = errors.New("unknown forecast version status")
	ErrMismatchedResults        = errors.New("series and forecast results do not line up")
)

// Status is the lifecycle state of a version.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// ParseStatus converts a name into a Status. The empty string is accepted and means any status
// when listing.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusPublished, StatusArchived, "":
		return Status(s), nil
	}
	return "", fmt.Errorf("%q, %w", s, ErrUnknownStatus)
}

// Transition validates a status change. Drafts may be published or archived, published
// versions may be published again to reactivate them or archived, and archived is terminal.
func Transition(from, to Status) error {
	switch from {
	case StatusDraft:
		if to == StatusPublished || to == StatusArchived {
			return nil
		}
	case StatusPublished:
		if to == StatusPublished || to == StatusArchived {
			return nil
		}
	case StatusArchived:
	default:
		return fmt.Errorf("%q, %w", from, ErrUnknownStatus)
	}
	return fmt.Errorf("%s to %s, %w", from, to, ErrInvalidTransition)
}

// EntityForecast is the resolved forecast of a single entity inside a version.
type EntityForecast struct {
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`

	Baseline timeseries.Values `json:"baseline"`
	Forecast timeseries.Values `json:"forecast"`

	CMGR           float64 `json:"cmgr"`
	ComputedCMGR   float64 `json:"computed_cmgr"`
	CMGROverridden bool    `json:"cmgr_overridden"`

	HistoricalTotal float64 `json:"historical_total"`
	ForecastTotal   float64 `json:"forecast_total"`

	// Insufficient is set when the entity had too little history to forecast.
	Insufficient bool `json:"insufficient_history"`
}

// Summary aggregates every entity of a version.
type Summary struct {
	HistoricalTotal    float64 `json:"historical_total"`
	ForecastedTotal    float64 `json:"forecasted_total"`
	AvgMonthlyForecast float64 `json:"avg_monthly_forecast"`

	// GrowthRate compares the average forecast month with the average historical month.
	GrowthRate float64 `json:"growth_rate"`
	Entities   int     `json:"entities"`
}

// Version is a numbered snapshot of forecasts for an organization. Only the lifecycle fields
// change after creation.
type Version struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Number         int    `json:"number"`
	Name           string `json:"name"`
	Notes          string `json:"notes,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`

	Status   Status `json:"status"`
	IsActive bool   `json:"is_active"`

	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`

	StartMonth  timeseries.Month     `json:"start_month"`
	Horizon     int                  `json:"horizon"`
	Adjustments forecast.Adjustments `json:"adjustments"`
	Entities    []EntityForecast     `json:"entities"`
	Summary     Summary              `json:"summary"`
}

// Entity returns the forecast of an entity in the version.
func (v *Version) Entity(entityID string) (EntityForecast, bool) {
	for _, e := range v.Entities {
		if e.EntityID == entityID {
			return e, true
		}
	}
	return EntityForecast{}, false
}

// Copy returns a deep copy of the version that shares no mutable state with v.
func (v *Version) Copy() *Version {
	c := *v
	if v.PublishedAt != nil {
		t := *v.PublishedAt
		c.PublishedAt = &t
	}
	if v.ArchivedAt != nil {
		t := *v.ArchivedAt
		c.ArchivedAt = &t
	}
	c.Adjustments = append(forecast.Adjustments(nil), v.Adjustments...)
	c.Entities = append([]EntityForecast(nil), v.Entities...)
	for i := range c.Entities {
		c.Entities[i].Baseline = maps.Clone(v.Entities[i].Baseline)
		c.Entities[i].Forecast = maps.Clone(v.Entities[i].Forecast)
	}
	return &c
}

// Request describes the version to build.
type Request struct {
	OrganizationID string
	Name           string
	Notes          string
	CreatedBy      string
	Start          timeseries.Month
	Horizon        int
	Adjustments    forecast.Adjustments
}

// Build assembles a draft version from each series and its forecast result. Results must be in
// the same order as the series. The version number is assigned by the store on creation.
func Build(req Request, series []*timeseries.TimeSeries, results []*forecast.Result) (*Version, error) {
	if req.OrganizationID == "" {
		return nil, ErrNoOrganization
	}
	if len(series) != len(results) {
		return nil, fmt.Errorf("%d series and %d results, %w", len(series), len(results), ErrMismatchedResults)
	}

	v := &Version{
		ID:             uuid.NewString(),
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Notes:          req.Notes,
		CreatedBy:      req.CreatedBy,
		Status:         StatusDraft,
		CreatedAt:      time.Now().UTC(),
		StartMonth:     req.Start,
		Horizon:        req.Horizon,
		Adjustments:    req.Adjustments,
		Entities:       make([]EntityForecast, 0, len(series)),
	}

	for i, ts := range series {
		res := results[i]
		if ts == nil || res == nil {
			return nil, fmt.Errorf("entry %d is nil, %w", i, ErrMismatchedResults)
		}
		if ts.EntityID != res.EntityID {
			return nil, fmt.Errorf("series %s paired with result %s, %w", ts.EntityID, res.EntityID, ErrMismatchedResults)
		}

		baseline := ts.Copy()
		ef := EntityForecast{
			EntityID:        ts.EntityID,
			EntityName:      ts.EntityName,
			Baseline:        baseline.Values,
			Forecast:        make(timeseries.Values, len(res.Forecast)),
			CMGR:            res.CMGR,
			ComputedCMGR:    res.ComputedCMGR,
			CMGROverridden:  res.CMGROverridden,
			HistoricalTotal: baseline.Total,
			ForecastTotal:   res.Total(),
			Insufficient:    res.Empty() && req.Horizon > 0,
		}
		for m, val := range res.Forecast {
			ef.Forecast[m] = val
		}
		v.Entities = append(v.Entities, ef)
	}
	v.Summary = Summarize(v.Entities)
	return v, nil
}

// Summarize aggregates entity forecasts. Averages are taken per distinct calendar month across
// all entities so that entities with different coverage do not skew the growth rate.
func Summarize(entities []EntityForecast) Summary {
	s := Summary{Entities: len(entities)}
	histMonths := make(map[timeseries.Month]struct{})
	fcMonths := make(map[timeseries.Month]struct{})
	for _, e := range entities {
		s.HistoricalTotal += e.HistoricalTotal
		s.ForecastedTotal += e.ForecastTotal
		for m := range e.Baseline {
			histMonths[m] = struct{}{}
		}
		for m := range e.Forecast {
			fcMonths[m] = struct{}{}
		}
	}

	if len(fcMonths) > 0 {
		s.AvgMonthlyForecast = s.ForecastedTotal / float64(len(fcMonths))
	}
	if len(histMonths) > 0 && s.HistoricalTotal > 0 && len(fcMonths) > 0 {
		avgHist := s.HistoricalTotal / float64(len(histMonths))
		s.GrowthRate = s.AvgMonthlyForecast/avgHist - 1.0
	}
	return s
}
