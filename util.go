package forecaster

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/ledgerpulse/go-forecaster/timeseries"
	"github.com/ledgerpulse/go-forecaster/version"
)

// LineTSeries generates an echart multi-line chart over consecutive months. Each series is
// plotted against the same month axis and months without a value are left as gaps.
func LineTSeries(title string, seriesName []string, months []timeseries.Month, y []timeseries.Values) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: title,
			},
		),
		charts.WithTooltipOpts(
			opts.Tooltip{
				Trigger: "axis",
			},
		),
	)

	xAxis := make([]string, len(months))
	for i, m := range months {
		xAxis[i] = m.String()
	}

	line = line.SetXAxis(xAxis)
	for i, name := range seriesName {
		lineData := make([]opts.LineData, len(months))
		for j, m := range months {
			val, exists := y[i][m]
			if !exists {
				// null values render as gaps
				lineData[j] = opts.LineData{Value: nil}
				continue
			}
			lineData[j] = opts.LineData{Value: val}
		}
		line = line.AddSeries(name, lineData)
	}
	return line
}

// LineEntity generates an echart line chart of the baseline and forecast of an entity.
func LineEntity(e version.EntityForecast) *charts.Line {
	all := make(timeseries.Values, len(e.Baseline)+len(e.Forecast))
	for m, val := range e.Baseline {
		all[m] = val
	}
	for m, val := range e.Forecast {
		all[m] = val
	}
	sorted := all.Months()

	var months []timeseries.Month
	if len(sorted) > 0 {
		first, last := sorted[0], sorted[len(sorted)-1]
		months = timeseries.Range(first, last.Sub(first)+1)
	}

	title := e.EntityName
	if title == "" {
		title = e.EntityID
	}
	if e.Insufficient {
		title += " (insufficient history)"
	} else {
		title = fmt.Sprintf("%s (CMGR %.2f%%)", title, e.CMGR*100.0)
	}

	return LineTSeries(
		title,
		[]string{"Actual", "Forecast"},
		months,
		[]timeseries.Values{e.Baseline, e.Forecast},
	)
}

// PlotVersion uses the Apache Echarts library to render an html page with one chart per entity
// of the version.
func PlotVersion(w io.Writer, v *version.Version) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s v%d", v.Name, v.Number)
	for _, e := range v.Entities {
		page.AddCharts(LineEntity(e))
	}
	return page.Render(w)
}
