package output

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/ledgerpulse/go-forecaster"
	"github.com/ledgerpulse/go-forecaster/correlation"
	"github.com/ledgerpulse/go-forecaster/forecast"
	"github.com/ledgerpulse/go-forecaster/internal/config"
	"github.com/ledgerpulse/go-forecaster/stats"
	"github.com/ledgerpulse/go-forecaster/timeseries"
	"github.com/ledgerpulse/go-forecaster/version"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jul = timeseries.MustParseMonth("2024-07")
	aug = timeseries.MustParseMonth("2024-08")
)

func testConfig(out config.OutputMode) *config.Config {
	return &config.Config{
		Output:    out,
		Precision: 2,
		UseColors: false,
	}
}

func testResults() *forecaster.Results {
	return &forecaster.Results{
		Start:   jul,
		Horizon: 2,
		Forecasts: []*forecast.Result{
			{
				EntityID: "stripe:pro",
				Start:    jul,
				Horizon:  2,
				Forecast: timeseries.Values{jul: 110, aug: 121},
				CMGR:     0.1,
			},
			{
				EntityID: "seo:forecasting",
				Start:    jul,
				Horizon:  2,
				Forecast: timeseries.Values{},
			},
		},
	}
}

func testVersion() *version.Version {
	return &version.Version{
		ID:             "v-1",
		OrganizationID: "acme",
		Number:         3,
		Name:           "Q3 plan",
		Status:         version.StatusPublished,
		IsActive:       true,
		CreatedAt:      time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC),
		StartMonth:     jul,
		Horizon:        2,
		Entities: []version.EntityForecast{
			{
				EntityID:        "stripe:pro",
				EntityName:      "Pro",
				Baseline:        timeseries.Values{timeseries.MustParseMonth("2024-06"): 100},
				Forecast:        timeseries.Values{jul: 110, aug: 121},
				CMGR:            0.1,
				HistoricalTotal: 100,
				ForecastTotal:   231,
			},
		},
		Summary: version.Summary{HistoricalTotal: 100, ForecastedTotal: 231, AvgMonthlyForecast: 115.5, GrowthRate: 0.155, Entities: 1},
	}
}

func TestWriteForecast(t *testing.T) {
	testData := map[string]struct {
		output config.OutputMode
		check  func(*testing.T, string)
	}{
		"table": {
			output: config.TableOut,
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "2024-07")
				assert.Contains(t, out, "stripe:pro")
				assert.Contains(t, out, "10.00%")
				assert.Contains(t, out, "121.00")
				assert.Contains(t, out, "Forecast from 2024-07 for 2 months, total 231.00")
			},
		},
		"json": {
			output: config.JSONOut,
			check: func(t *testing.T, out string) {
				var res forecaster.Results
				require.NoError(t, json.Unmarshal([]byte(out), &res))
				assert.Equal(t, jul, res.Start)
				require.Len(t, res.Forecasts, 2)
				assert.InDelta(t, 121.0, res.Forecasts[0].Forecast[aug], 1e-9)
			},
		},
		"csv": {
			output: config.CSVOut,
			check: func(t *testing.T, out string) {
				records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
				require.NoError(t, err)
				require.Len(t, records, 3)
				assert.Equal(t, []string{"entity_id", "month", "value", "cmgr", "cmgr_overridden"}, records[0])
				assert.Equal(t, []string{"stripe:pro", "2024-07", "110.00", "0.1", "false"}, records[1])
			},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteForecast(&buf, testResults(), testConfig(td.output)))
			td.check(t, buf.String())
		})
	}
}

func TestWriteBacktest(t *testing.T) {
	results := []*forecast.BacktestResult{
		{
			EntityID:  "stripe:pro",
			Cutoff:    timeseries.MustParseMonth("2024-06"),
			Months:    []timeseries.Month{jul, aug},
			Predicted: []float64{110, 121},
			Actual:    []float64{100, 121},
			Scores:    &stats.Scores{MSE: 50, MAPE: 0.05, R2: 0.9, N: 2},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBacktest(&buf, results, testConfig(config.TableOut)))
	assert.Contains(t, buf.String(), "5.00%")
	assert.Contains(t, buf.String(), "Backtested 1 series")

	buf.Reset()
	require.NoError(t, WriteBacktest(&buf, results, testConfig(config.CSVOut)))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, []string{"stripe:pro", "2024-07", "110.00", "100.00"}, records[1])
}

func TestWriteCorrelations(t *testing.T) {
	results := []*correlation.Result{
		{SeriesA: "ga:organic:sessions", SeriesB: "stripe:pro", R: 0.91, PValue: 0.001, Strength: stats.StrengthStrong, Direction: stats.DirectionPositive, Lag: 1, SharedMonths: 11},
		{SeriesA: "ga:paid:sessions", SeriesB: "stripe:pro", R: -0.5, PValue: 0.1, Strength: stats.StrengthModerate, Direction: stats.DirectionNegative, SharedMonths: 12},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCorrelations(&buf, results, testConfig(config.TableOut)))
	out := buf.String()
	assert.Contains(t, out, "+0.91")
	assert.Contains(t, out, "-0.50")
	assert.Contains(t, out, "strong")

	buf.Reset()
	require.NoError(t, WriteCorrelations(&buf, nil, testConfig(config.TableOut)))
	assert.Contains(t, buf.String(), "No computable correlations")

	buf.Reset()
	require.NoError(t, WriteCorrelations(&buf, results, testConfig(config.JSONOut)))
	var decoded []*correlation.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, results, decoded)
}

func TestWriteClusters(t *testing.T) {
	clusters := []correlation.Cluster{
		{Members: []string{"a", "b", "c"}, AvgAbsR: 0.8},
		{Members: []string{"d", "e"}, AvgAbsR: 0.6},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteClusters(&buf, clusters, testConfig(config.TableOut)))
	assert.Contains(t, buf.String(), "a, b, c")
	assert.Contains(t, buf.String(), "Found 2 clusters")

	buf.Reset()
	require.NoError(t, WriteClusters(&buf, clusters, testConfig(config.CSVOut)))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 6)
}

func TestWriteVersions(t *testing.T) {
	v := testVersion()

	var buf bytes.Buffer
	require.NoError(t, WriteVersions(&buf, []*version.Version{v}, testConfig(config.TableOut)))
	assert.Contains(t, buf.String(), "published (active)")
	assert.Contains(t, buf.String(), "Showing 1 versions")

	buf.Reset()
	require.NoError(t, WriteVersion(&buf, v, testConfig(config.TableOut)))
	out := buf.String()
	assert.Contains(t, out, `Version 3 "Q3 plan"`)
	assert.Contains(t, out, "Growth: +15.50%")

	buf.Reset()
	require.NoError(t, WriteVersion(&buf, v, testConfig(config.CSVOut)))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"v-1", "stripe:pro", "2024-06", version.KindBaseline, "100.00"}, records[1])
}

func TestWriteComparison(t *testing.T) {
	from := testVersion()
	to := testVersion()
	to.ID = "v-2"
	to.Number = 4
	to.Entities = append([]version.EntityForecast(nil), to.Entities...)
	to.Entities[0].Forecast = timeseries.Values{jul: 120, aug: 130}
	to.Entities[0].ForecastTotal = 250
	to.Summary.ForecastedTotal = 250

	c := version.Compare(from, to)

	var buf bytes.Buffer
	require.NoError(t, WriteComparison(&buf, c, testConfig(config.TableOut)))
	out := buf.String()
	assert.Contains(t, out, "Comparing version 3 to version 4")
	assert.Contains(t, out, "Forecast total: 231.00 -> 250.00 (+19.00)")

	buf.Reset()
	require.NoError(t, WriteComparison(&buf, c, testConfig(config.CSVOut)))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"stripe:pro", "2024-07", "110", "120", "10"}, records[1][:5])
}

func TestExportVersions(t *testing.T) {
	versions := []*version.Version{testVersion()}

	var buf bytes.Buffer
	require.NoError(t, ExportVersions(&buf, versions, config.ParquetExport))
	reader := parquet.NewGenericReader[version.ParquetRow](bytes.NewReader(buf.Bytes()))
	defer reader.Close()
	assert.Equal(t, int64(3), reader.NumRows())

	buf.Reset()
	require.NoError(t, ExportVersions(&buf, versions, config.JSONExport))
	var decoded []*version.Version
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "Q3 plan", decoded[0].Name)
}

func TestWriteWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	err := WriteWithFile(path, func(w io.Writer) error {
		return writeJSON(w, map[string]int{"a": 1})
	}, "Wrote test output")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, string(data))

	_, err = SelectOutputFile(filepath.Join(t.TempDir(), "missing", "out.json"))
	assert.Error(t, err)
}
