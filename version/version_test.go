package version

import (
	"testing"

	"github.com/ledgerpulse/go-forecaster/forecast"
	"github.com/ledgerpulse/go-forecaster/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jan = timeseries.MustParseMonth("2024-01")
	feb = timeseries.MustParseMonth("2024-02")
	mar = timeseries.MustParseMonth("2024-03")
	jul = timeseries.MustParseMonth("2024-07")
	aug = timeseries.MustParseMonth("2024-08")
)

func revenueSeries(t *testing.T) *timeseries.TimeSeries {
	t.Helper()
	ts, err := timeseries.New("rev", "Revenue", map[string]float64{
		"2024-01": 100,
		"2024-02": 110,
		"2024-03": 105,
		"2024-04": 130,
		"2024-05": 140,
		"2024-06": 150,
	})
	require.NoError(t, err)
	return ts
}

func sparseSeries(t *testing.T) *timeseries.TimeSeries {
	t.Helper()
	ts, err := timeseries.New("new", "New Product", map[string]float64{
		"2024-06": 20,
	})
	require.NoError(t, err)
	return ts
}

// buildVersion forecasts the fixtures from July 2024 for two months.
func buildVersion(t *testing.T, orgID string, adjs forecast.Adjustments) *Version {
	t.Helper()
	series := []*timeseries.TimeSeries{revenueSeries(t), sparseSeries(t)}
	g := forecast.New(nil)
	results := make([]*forecast.Result, len(series))
	for i, ts := range series {
		res, err := g.Generate(ts, jul, 2, adjs)
		require.NoError(t, err)
		results[i] = res
	}
	v, err := Build(Request{
		OrganizationID: orgID,
		Name:           "Q3 plan",
		CreatedBy:      "analyst@example.com",
		Start:          jul,
		Horizon:        2,
		Adjustments:    adjs,
	}, series, results)
	require.NoError(t, err)
	return v
}

func TestTransition(t *testing.T) {
	testData := map[string]struct {
		from        Status
		to          Status
		expectedErr error
	}{
		"draft to published":      {StatusDraft, StatusPublished, nil},
		"draft to archived":       {StatusDraft, StatusArchived, nil},
		"draft to draft":          {StatusDraft, StatusDraft, ErrInvalidTransition},
		"republish":               {StatusPublished, StatusPublished, nil},
		"published to archived":   {StatusPublished, StatusArchived, nil},
		"published to draft":      {StatusPublished, StatusDraft, ErrInvalidTransition},
		"archived to published":   {StatusArchived, StatusPublished, ErrInvalidTransition},
		"archived to archived":    {StatusArchived, StatusArchived, ErrInvalidTransition},
		"archived to draft":       {StatusArchived, StatusDraft, ErrInvalidTransition},
		"unknown starting status": {Status("pending"), StatusPublished, ErrUnknownStatus},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			err := Transition(td.from, td.to)
			if td.expectedErr != nil {
				assert.ErrorIs(t, err, td.expectedErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"draft", "published", "archived", ""} {
		status, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), status)
	}
	_, err := ParseStatus("deleted")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestBuild(t *testing.T) {
	adjs := forecast.Adjustments{forecast.CMGROverride{EntityID: "rev", Percent: 10}}
	v := buildVersion(t, "org-1", adjs)

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "org-1", v.OrganizationID)
	assert.Equal(t, StatusDraft, v.Status)
	assert.False(t, v.IsActive)
	assert.Zero(t, v.Number)
	assert.Equal(t, jul, v.StartMonth)
	assert.Equal(t, 2, v.Horizon)
	require.Len(t, v.Entities, 2)

	rev, ok := v.Entity("rev")
	require.True(t, ok)
	assert.Equal(t, "Revenue", rev.EntityName)
	assert.InDelta(t, 0.10, rev.CMGR, 1e-12)
	assert.True(t, rev.CMGROverridden)
	assert.InDelta(t, 735.0, rev.HistoricalTotal, 1e-9)
	require.Len(t, rev.Forecast, 2)
	assert.InDelta(t, 165.0, rev.Forecast[jul], 1e-9)
	assert.InDelta(t, 181.5, rev.Forecast[aug], 1e-9)
	assert.InDelta(t, 346.5, rev.ForecastTotal, 1e-9)
	assert.False(t, rev.Insufficient)
	assert.Len(t, rev.Baseline, 6)

	sparse, ok := v.Entity("new")
	require.True(t, ok)
	assert.True(t, sparse.Insufficient)
	assert.Empty(t, sparse.Forecast)
	assert.InDelta(t, 20.0, sparse.HistoricalTotal, 1e-9)

	_, ok = v.Entity("missing")
	assert.False(t, ok)

	assert.Equal(t, 2, v.Summary.Entities)
	assert.InDelta(t, 755.0, v.Summary.HistoricalTotal, 1e-9)
	assert.InDelta(t, 346.5, v.Summary.ForecastedTotal, 1e-9)
}

func TestBuildErrors(t *testing.T) {
	ts := revenueSeries(t)
	res, err := forecast.New(nil).Generate(ts, jul, 1, nil)
	require.NoError(t, err)

	testData := map[string]struct {
		req         Request
		series      []*timeseries.TimeSeries
		results     []*forecast.Result
		expectedErr error
	}{
		"no organization": {
			req:         Request{},
			series:      []*timeseries.TimeSeries{ts},
			results:     []*forecast.Result{res},
			expectedErr: ErrNoOrganization,
		},
		"length mismatch": {
			req:         Request{OrganizationID: "org"},
			series:      []*timeseries.TimeSeries{ts},
			expectedErr: ErrMismatchedResults,
		},
		"nil result": {
			req:         Request{OrganizationID: "org"},
			series:      []*timeseries.TimeSeries{ts},
			results:     []*forecast.Result{nil},
			expectedErr: ErrMismatchedResults,
		},
		"wrong entity": {
			req:         Request{OrganizationID: "org"},
			series:      []*timeseries.TimeSeries{sparseSeries(t)},
			results:     []*forecast.Result{res},
			expectedErr: ErrMismatchedResults,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			_, err := Build(td.req, td.series, td.results)
			assert.ErrorIs(t, err, td.expectedErr)
		})
	}
}

func TestSummarize(t *testing.T) {
	entities := []EntityForecast{
		{
			EntityID:        "a",
			Baseline:        timeseries.Values{jan: 100, feb: 100},
			Forecast:        timeseries.Values{mar: 120},
			HistoricalTotal: 200,
			ForecastTotal:   120,
		},
		{
			EntityID:        "b",
			Baseline:        timeseries.Values{jan: 50, feb: 50},
			Forecast:        timeseries.Values{mar: 60},
			HistoricalTotal: 100,
			ForecastTotal:   60,
		},
	}

	s := Summarize(entities)
	assert.Equal(t, 2, s.Entities)
	assert.InDelta(t, 300.0, s.HistoricalTotal, 1e-12)
	assert.InDelta(t, 180.0, s.ForecastedTotal, 1e-12)
	assert.InDelta(t, 180.0, s.AvgMonthlyForecast, 1e-12)
	assert.InDelta(t, 0.2, s.GrowthRate, 1e-12)

	empty := Summarize(nil)
	assert.Equal(t, Summary{}, empty)
}

func TestCompare(t *testing.T) {
	from := &Version{
		ID:     "v1",
		Number: 1,
		Entities: []EntityForecast{
			{EntityID: "rev", CMGR: 0.1, Forecast: timeseries.Values{jul: 100, aug: 110}, ForecastTotal: 210},
			{EntityID: "old", CMGR: 0.05, Forecast: timeseries.Values{jul: 10}, ForecastTotal: 10},
		},
		Summary: Summary{ForecastedTotal: 220, HistoricalTotal: 500},
	}
	to := &Version{
		ID:     "v2",
		Number: 2,
		Entities: []EntityForecast{
			{EntityID: "rev", CMGR: 0.2, Forecast: timeseries.Values{jul: 120, aug: 144}, ForecastTotal: 264},
			{EntityID: "ads", CMGR: 0.0, Forecast: timeseries.Values{aug: 5}, ForecastTotal: 5},
		},
		Summary: Summary{ForecastedTotal: 269, HistoricalTotal: 500},
	}

	c := Compare(from, to)
	assert.Equal(t, "v1", c.FromID)
	assert.Equal(t, "v2", c.ToID)
	assert.Equal(t, 1, c.FromNumber)
	assert.Equal(t, 2, c.ToNumber)
	assert.InDelta(t, 49.0, c.ForecastedTotal.Change, 1e-12)
	assert.InDelta(t, 49.0/220.0*100.0, c.ForecastedTotal.PercentChange, 1e-12)
	assert.Zero(t, c.HistoricalTotal.Change)

	require.Len(t, c.Entities, 3)
	assert.Equal(t, []string{"ads", "old", "rev"}, []string{c.Entities[0].EntityID, c.Entities[1].EntityID, c.Entities[2].EntityID})

	ads := c.Entities[0]
	assert.False(t, ads.InFrom)
	assert.True(t, ads.InTo)
	assert.InDelta(t, 5.0, ads.ForecastTotal.Change, 1e-12)
	assert.Zero(t, ads.ForecastTotal.PercentChange)

	old := c.Entities[1]
	assert.True(t, old.InFrom)
	assert.False(t, old.InTo)
	assert.InDelta(t, -100.0, old.ForecastTotal.PercentChange, 1e-12)

	rev := c.Entities[2]
	assert.InDelta(t, 0.1, rev.CMGR.Change, 1e-12)
	require.Len(t, rev.Months, 2)
	assert.Equal(t, jul, rev.Months[0].Month)
	assert.InDelta(t, 20.0, rev.Months[0].Change, 1e-12)
	assert.InDelta(t, 30.9090909, rev.Months[1].PercentChange, 1e-6)
}

func TestCopyIsIndependent(t *testing.T) {
	v := buildVersion(t, "org-1", nil)
	c := v.Copy()
	c.Entities[0].EntityName = "changed"
	c.Status = StatusPublished
	assert.NotEqual(t, "changed", v.Entities[0].EntityName)
	assert.Equal(t, StatusDraft, v.Status)

	want := v.Entities[0].Forecast[jul]
	c.Entities[0].Forecast[jul] = -999
	delete(c.Entities[0].Baseline, timeseries.MustParseMonth("2024-01"))
	assert.Equal(t, want, v.Entities[0].Forecast[jul])
	assert.Contains(t, v.Entities[0].Baseline, timeseries.MustParseMonth("2024-01"))
}
