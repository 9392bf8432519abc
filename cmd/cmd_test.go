package cmd

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/ledgerpulse/go-forecaster"
	"github.com/ledgerpulse/go-forecaster/correlation"
	"github.com/ledgerpulse/go-forecaster/timeseries"
	"github.com/ledgerpulse/go-forecaster/version"
	"github.com/parquet-go/parquet-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const historyCSV = `entity_id,entity_name,month,value
stripe:pro,Revenue,2024-01,100
stripe:pro,Revenue,2024-02,110
stripe:pro,Revenue,2024-03,105
stripe:pro,Revenue,2024-04,130
stripe:pro,Revenue,2024-05,140
stripe:pro,Revenue,2024-06,150
ga:organic:sessions,Organic sessions,2024-01,1000
ga:organic:sessions,Organic sessions,2024-02,1100
ga:organic:sessions,Organic sessions,2024-03,1050
ga:organic:sessions,Organic sessions,2024-04,1300
ga:organic:sessions,Organic sessions,2024-05,1400
ga:organic:sessions,Organic sessions,2024-06,1500
`

const overridesJSON = `[{"type": "cmgr_override", "entity_id": "stripe:pro", "value": 10}]`

// resetFlags restores every flag to its default so commands do not leak state between runs.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "forecaster CLI")
	assert.Contains(t, out, "Version: dev")
}

func TestForecastCommand(t *testing.T) {
	dir := t.TempDir()
	history := writeFile(t, dir, "history.csv", historyCSV)
	out := filepath.Join(dir, "forecast.json")

	_, err := execute(t, "forecast", history, "--backend", "memory", "--output", "json", "--output-file", out, "--horizon", "3")
	require.NoError(t, err)

	var res forecaster.Results
	readJSON(t, out, &res)
	assert.Equal(t, timeseries.MustParseMonth("2024-07"), res.Start)
	assert.Equal(t, 3, res.Horizon)
	require.Len(t, res.Forecasts, 2)
	for _, r := range res.Forecasts {
		assert.Len(t, r.Forecast, 3)
	}

	overrides := writeFile(t, dir, "overrides.json", overridesJSON)
	_, err = execute(t, "forecast", "--input", history, "--entities", "stripe:pro", "--adjustments", overrides,
		"--start", "2024-07", "--horizon", "2", "--output", "json", "--output-file", out)
	require.NoError(t, err)

	readJSON(t, out, &res)
	require.Len(t, res.Forecasts, 1)
	assert.True(t, res.Forecasts[0].CMGROverridden)
	assert.InDelta(t, 0.1, res.Forecasts[0].CMGR, 1e-9)
}

func TestForecastCommandErrors(t *testing.T) {
	dir := t.TempDir()
	history := writeFile(t, dir, "history.csv", historyCSV)

	testData := map[string]struct {
		args []string
	}{
		"no input": {
			args: []string{"forecast"},
		},
		"unknown entity": {
			args: []string{"forecast", history, "--entities", "stripe:missing"},
		},
		"bad start": {
			args: []string{"forecast", history, "--start", "July"},
		},
		"bad output": {
			args: []string{"forecast", history, "--output", "xml"},
		},
		"missing adjustments": {
			args: []string{"forecast", history, "--adjustments", filepath.Join(dir, "missing.json")},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, td.args...)
			assert.Error(t, err)
		})
	}
}

func TestBacktestCommand(t *testing.T) {
	dir := t.TempDir()
	history := writeFile(t, dir, "history.csv", historyCSV)
	out := filepath.Join(dir, "backtest.csv")

	_, err := execute(t, "backtest", history, "--holdout", "2", "--output", "csv", "--output-file", out)
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestCorrelationCommands(t *testing.T) {
	dir := t.TempDir()
	history := writeFile(t, dir, "history.csv", historyCSV)
	out := filepath.Join(dir, "out.json")

	_, err := execute(t, "correlate", "ga:organic:sessions", "stripe:pro", "--input", history, "--lag", "0", "--output", "json", "--output-file", out)
	require.NoError(t, err)
	var results []*correlation.Result
	readJSON(t, out, &results)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].R, 1e-9)
	assert.Equal(t, 0, results[0].Lag)
	assert.Equal(t, 6, results[0].SharedMonths)

	_, err = execute(t, "predictors", "stripe:pro", "--input", history, "--output", "json", "--output-file", out)
	require.NoError(t, err)
	readJSON(t, out, &results)
	require.Len(t, results, 1)
	assert.Equal(t, "ga:organic:sessions", results[0].SeriesA)

	_, err = execute(t, "clusters", history, "--output", "json", "--output-file", out)
	require.NoError(t, err)
	var clusters []correlation.Cluster
	readJSON(t, out, &clusters)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"ga:organic:sessions", "stripe:pro"}, clusters[0].Members)

	_, err = execute(t, "correlate", "stripe:pro", "--input", history)
	assert.Error(t, err)
}

func TestVersionsCommands(t *testing.T) {
	dir := t.TempDir()
	history := writeFile(t, dir, "history.csv", historyCSV)
	overrides := writeFile(t, dir, "overrides.json", overridesJSON)
	db := filepath.Join(dir, "versions.db")
	out := filepath.Join(dir, "out")

	store := []string{"--backend", "sqlite", "--dsn", db, "--org", "acme"}
	run := func(args ...string) error {
		_, err := execute(t, append(args, store...)...)
		return err
	}

	require.NoError(t, run("versions", "create", history, "--name", "baseline", "--output", "json", "--output-file", out))
	var v1 version.Version
	readJSON(t, out, &v1)
	assert.Equal(t, 1, v1.Number)
	assert.Equal(t, version.StatusDraft, v1.Status)
	assert.Equal(t, "acme", v1.OrganizationID)

	require.NoError(t, run("versions", "create", history, "--name", "faster growth", "--adjustments", overrides, "--output", "json", "--output-file", out))
	var v2 version.Version
	readJSON(t, out, &v2)
	assert.Equal(t, 2, v2.Number)
	require.Len(t, v2.Adjustments, 1)

	// nothing is active yet
	assert.ErrorIs(t, run("versions", "show"), version.ErrNotFound)

	require.NoError(t, run("versions", "publish", v1.ID, "--output", "json", "--output-file", out))
	require.NoError(t, run("versions", "publish", v2.ID, "--output", "json", "--output-file", out))

	require.NoError(t, run("versions", "show", "--output", "json", "--output-file", out))
	var active version.Version
	readJSON(t, out, &active)
	assert.Equal(t, v2.ID, active.ID)
	assert.True(t, active.IsActive)

	require.NoError(t, run("versions", "list", "--output", "csv", "--output-file", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3)

	require.NoError(t, run("versions", "compare", v1.ID, v2.ID, "--output", "json", "--output-file", out))
	var c version.Comparison
	readJSON(t, out, &c)
	assert.Equal(t, 1, c.FromNumber)
	assert.Equal(t, 2, c.ToNumber)

	parquetPath := filepath.Join(dir, "versions.parquet")
	require.NoError(t, run("versions", "export", "--output-file", parquetPath))
	f, err := os.Open(parquetPath)
	require.NoError(t, err)
	defer f.Close()
	reader := parquet.NewGenericReader[version.ParquetRow](f)
	defer reader.Close()
	assert.Positive(t, reader.NumRows())

	assert.ErrorIs(t, run("versions", "export"), errParquetToStdout)

	require.NoError(t, run("versions", "archive", v1.ID, "--output", "json", "--output-file", out))
	assert.ErrorIs(t, run("versions", "publish", v1.ID), version.ErrInvalidTransition)

	htmlPath := filepath.Join(dir, "plot.html")
	require.NoError(t, run("plot", "--output-file", htmlPath))
	html, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Revenue (CMGR 10.00%)")

	require.NoError(t, run("migrate", "--target-version", "0"))
	require.NoError(t, run("migrate"))
}

func TestMigrateMemory(t *testing.T) {
	_, err := execute(t, "migrate", "--backend", "memory")
	assert.ErrorIs(t, err, errMigrateMemory)
}
