// Package ingest converts monthly aggregates exported from data providers into time series.
// Every provider record is validated once here so the forecasting and correlation packages
// only ever see timeseries.TimeSeries values.
package ingest

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ledgerpulse/go-forecaster/timeseries"
)

var (
	ErrUnknownSource  = errors.New("unknown record source")
	ErrMissingField   = errors.New("record is missing a required field")
	ErrNegativeAmount = errors.New("record amount is negative")
	ErrUnknownMetric  = errors.New("unknown record metric")
)

// Source names the provider a record came from.
type Source string

const (
	SourceStripe          Source = "stripe"
	SourceGoogleAnalytics Source = "google_analytics"
	SourceActiveCampaign  Source = "activecampaign"
	SourceDataForSEO      Source = "dataforseo"
	SourceManual          Source = "manual"
)

// Sources lists every supported source.
var Sources = []Source{
	SourceStripe,
	SourceGoogleAnalytics,
	SourceActiveCampaign,
	SourceDataForSEO,
	SourceManual,
}

// Record is a single monthly aggregate of one provider.
type Record interface {
	Source() Source

	// Entity returns the id and display name of the series the record belongs to.
	Entity() (string, string)

	Month() timeseries.Month
	Value() float64

	Validate() error
}

// StripeRevenue is the net revenue of a product in a month, in the smallest currency unit.
type StripeRevenue struct {
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	Period        string `json:"month"`
	GrossCents    int64  `json:"gross_cents"`
	RefundedCents int64  `json:"refunded_cents"`

	month timeseries.Month
}

func (r *StripeRevenue) Source() Source { return SourceStripe }

func (r *StripeRevenue) Entity() (string, string) {
	return "stripe:" + r.ProductID, r.ProductName
}

func (r *StripeRevenue) Month() timeseries.Month { return r.month }

// Value returns the net revenue in whole currency units.
func (r *StripeRevenue) Value() float64 {
	return float64(r.GrossCents-r.RefundedCents) / 100.0
}

func (r *StripeRevenue) Validate() error {
	if r.ProductID == "" {
		return fmt.Errorf("stripe product_id, %w", ErrMissingField)
	}
	if r.GrossCents < 0 || r.RefundedCents < 0 {
		return fmt.Errorf("stripe product %s, %w", r.ProductID, ErrNegativeAmount)
	}
	if r.RefundedCents > r.GrossCents {
		return fmt.Errorf("stripe product %s refunded %d of %d, %w", r.ProductID, r.RefundedCents, r.GrossCents, ErrNegativeAmount)
	}
	m, err := parsePeriod(r.Period)
	if err != nil {
		return fmt.Errorf("stripe product %s, %w", r.ProductID, err)
	}
	r.month = m
	return nil
}

// GoogleAnalytics metrics.
const (
	MetricSessions = "sessions"
	MetricUsers    = "users"
)

// GoogleAnalyticsTraffic is the traffic of a channel in a month.
type GoogleAnalyticsTraffic struct {
	Channel  string `json:"channel"`
	Period   string `json:"month"`
	Sessions int64  `json:"sessions"`
	Users    int64  `json:"users"`

	// Metric selects the reported value, sessions by default.
	Metric string `json:"metric,omitempty"`

	month timeseries.Month
}

func (r *GoogleAnalyticsTraffic) Source() Source { return SourceGoogleAnalytics }

func (r *GoogleAnalyticsTraffic) metric() string {
	if r.Metric == "" {
		return MetricSessions
	}
	return r.Metric
}

func (r *GoogleAnalyticsTraffic) Entity() (string, string) {
	return "ga:" + r.Channel + ":" + r.metric(), r.Channel + " " + r.metric()
}

func (r *GoogleAnalyticsTraffic) Month() timeseries.Month { return r.month }

func (r *GoogleAnalyticsTraffic) Value() float64 {
	if r.metric() == MetricUsers {
		return float64(r.Users)
	}
	return float64(r.Sessions)
}

func (r *GoogleAnalyticsTraffic) Validate() error {
	if r.Channel == "" {
		return fmt.Errorf("google analytics channel, %w", ErrMissingField)
	}
	switch r.metric() {
	case MetricSessions, MetricUsers:
	default:
		return fmt.Errorf("google analytics %q, %w", r.Metric, ErrUnknownMetric)
	}
	if r.Sessions < 0 || r.Users < 0 {
		return fmt.Errorf("google analytics channel %s, %w", r.Channel, ErrNegativeAmount)
	}
	m, err := parsePeriod(r.Period)
	if err != nil {
		return fmt.Errorf("google analytics channel %s, %w", r.Channel, err)
	}
	r.month = m
	return nil
}

// ActiveCampaign metrics.
const (
	MetricSends  = "sends"
	MetricOpens  = "opens"
	MetricClicks = "clicks"
)

// ActiveCampaignEmail is the engagement of an email campaign in a month.
type ActiveCampaignEmail struct {
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	Period       string `json:"month"`
	Sends        int64  `json:"sends"`
	Opens        int64  `json:"opens"`
	Clicks       int64  `json:"clicks"`

	// Metric selects the reported value, opens by default.
	Metric string `json:"metric,omitempty"`

	month timeseries.Month
}

func (r *ActiveCampaignEmail) Source() Source { return SourceActiveCampaign }

func (r *ActiveCampaignEmail) metric() string {
	if r.Metric == "" {
		return MetricOpens
	}
	return r.Metric
}

func (r *ActiveCampaignEmail) Entity() (string, string) {
	name := r.CampaignName
	if name == "" {
		name = r.CampaignID
	}
	return "activecampaign:" + r.CampaignID + ":" + r.metric(), name + " " + r.metric()
}

func (r *ActiveCampaignEmail) Month() timeseries.Month { return r.month }

func (r *ActiveCampaignEmail) Value() float64 {
	switch r.metric() {
	case MetricSends:
		return float64(r.Sends)
	case MetricClicks:
		return float64(r.Clicks)
	default:
		return float64(r.Opens)
	}
}

func (r *ActiveCampaignEmail) Validate() error {
	if r.CampaignID == "" {
		return fmt.Errorf("activecampaign campaign_id, %w", ErrMissingField)
	}
	switch r.metric() {
	case MetricSends, MetricOpens, MetricClicks:
	default:
		return fmt.Errorf("activecampaign %q, %w", r.Metric, ErrUnknownMetric)
	}
	if r.Sends < 0 || r.Opens < 0 || r.Clicks < 0 {
		return fmt.Errorf("activecampaign campaign %s, %w", r.CampaignID, ErrNegativeAmount)
	}
	m, err := parsePeriod(r.Period)
	if err != nil {
		return fmt.Errorf("activecampaign campaign %s, %w", r.CampaignID, err)
	}
	r.month = m
	return nil
}

// DataForSEOKeyword is the search volume of a keyword in a month.
type DataForSEOKeyword struct {
	Keyword      string `json:"keyword"`
	Period       string `json:"month"`
	SearchVolume int64  `json:"search_volume"`

	month timeseries.Month
}

func (r *DataForSEOKeyword) Source() Source { return SourceDataForSEO }

func (r *DataForSEOKeyword) Entity() (string, string) {
	return "seo:" + strings.ToLower(strings.Join(strings.Fields(r.Keyword), "-")), r.Keyword
}

func (r *DataForSEOKeyword) Month() timeseries.Month { return r.month }

func (r *DataForSEOKeyword) Value() float64 { return float64(r.SearchVolume) }

func (r *DataForSEOKeyword) Validate() error {
	if strings.TrimSpace(r.Keyword) == "" {
		return fmt.Errorf("dataforseo keyword, %w", ErrMissingField)
	}
	if r.SearchVolume < 0 {
		return fmt.Errorf("dataforseo keyword %q, %w", r.Keyword, ErrNegativeAmount)
	}
	m, err := parsePeriod(r.Period)
	if err != nil {
		return fmt.Errorf("dataforseo keyword %q, %w", r.Keyword, err)
	}
	r.month = m
	return nil
}

// ManualEntry is a value typed in by hand or loaded from a spreadsheet.
type ManualEntry struct {
	EntityID   string  `json:"entity_id"`
	EntityName string  `json:"entity_name"`
	Period     string  `json:"month"`
	Amount     float64 `json:"value"`

	month timeseries.Month
}

func (r *ManualEntry) Source() Source { return SourceManual }

func (r *ManualEntry) Entity() (string, string) { return r.EntityID, r.EntityName }

func (r *ManualEntry) Month() timeseries.Month { return r.month }

func (r *ManualEntry) Value() float64 { return r.Amount }

func (r *ManualEntry) Validate() error {
	if r.EntityID == "" {
		return fmt.Errorf("manual entity_id, %w", ErrMissingField)
	}
	if math.IsNaN(r.Amount) || math.IsInf(r.Amount, 0) {
		return fmt.Errorf("manual entity %s, %w", r.EntityID, timeseries.ErrNonFinite)
	}
	if r.Amount < 0 {
		return fmt.Errorf("manual entity %s, %w", r.EntityID, ErrNegativeAmount)
	}
	m, err := parsePeriod(r.Period)
	if err != nil {
		return fmt.Errorf("manual entity %s, %w", r.EntityID, err)
	}
	r.month = m
	return nil
}

func parsePeriod(s string) (timeseries.Month, error) {
	if s == "" {
		return 0, fmt.Errorf("month, %w", ErrMissingField)
	}
	return timeseries.ParseMonth(s)
}

// newRecord returns an empty record for the source.
func newRecord(src Source) (Record, error) {
	switch src {
	case SourceStripe:
		return &StripeRevenue{}, nil
	case SourceGoogleAnalytics:
		return &GoogleAnalyticsTraffic{}, nil
	case SourceActiveCampaign:
		return &ActiveCampaignEmail{}, nil
	case SourceDataForSEO:
		return &DataForSEOKeyword{}, nil
	case SourceManual:
		return &ManualEntry{}, nil
	}
	return nil, fmt.Errorf("%q, %w", src, ErrUnknownSource)
}
