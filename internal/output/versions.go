package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ledgerpulse/go-forecaster/internal/config"
	"github.com/ledgerpulse/go-forecaster/version"
)

// WriteVersions renders a listing of versions.
func WriteVersions(w io.Writer, versions []*version.Version, cfg *config.Config) error {
	f := formatters{precision: cfg.Precision}
	p := newPalette(cfg.UseColors)
	return dispatch(cfg,
		func() error { return writeVersionsTable(w, versions, f, p) },
		func() error { return writeJSON(w, versions) },
		func() error { return writeVersionsCSV(w, versions, f) },
	)
}

func statusLabel(v *version.Version, p palette) string {
	switch {
	case v.IsActive:
		return p.green(string(v.Status) + " (active)")
	case v.Status == version.StatusArchived:
		return p.yellow(string(v.Status))
	default:
		return string(v.Status)
	}
}

func writeVersionsTable(w io.Writer, versions []*version.Version, f formatters, p palette) error {
	headers := []string{"Number", "ID", "Name", "Status", "Start", "Horizon", "Entities", "Forecast", "Created"}

	var data [][]string
	for _, v := range versions {
		data = append(data, []string{
			strconv.Itoa(v.Number),
			v.ID,
			v.Name,
			statusLabel(v, p),
			v.StartMonth.String(),
			strconv.Itoa(v.Horizon),
			strconv.Itoa(v.Summary.Entities),
			f.float(v.Summary.ForecastedTotal),
			v.CreatedAt.Format(time.RFC3339),
		})
	}

	if err := writeTable(w, headers, data); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Showing %d versions\n", len(versions))
	return err
}

func writeVersionsCSV(w io.Writer, versions []*version.Version, f formatters) error {
	header := []string{"number", "id", "organization_id", "name", "status", "is_active", "start_month", "horizon", "entities", "forecasted_total", "created_at"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, v := range versions {
			row := []string{
				strconv.Itoa(v.Number),
				v.ID,
				v.OrganizationID,
				v.Name,
				string(v.Status),
				strconv.FormatBool(v.IsActive),
				v.StartMonth.String(),
				strconv.Itoa(v.Horizon),
				strconv.Itoa(v.Summary.Entities),
				f.float(v.Summary.ForecastedTotal),
				v.CreatedAt.Format(time.RFC3339),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row for version %s: %w", v.ID, err)
			}
		}
		return nil
	})
}

// WriteVersion renders a single version with its entities and summary.
func WriteVersion(w io.Writer, v *version.Version, cfg *config.Config) error {
	f := formatters{precision: cfg.Precision}
	p := newPalette(cfg.UseColors)
	return dispatch(cfg,
		func() error { return writeVersionTable(w, v, f, p) },
		func() error { return writeJSON(w, v) },
		func() error {
			header := []string{"version_id", "entity_id", "month", "kind", "value"}
			return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
				for _, row := range version.ParquetRows([]*version.Version{v}) {
					if err := cw.Write([]string{row.VersionID, row.EntityID, row.Month, row.Kind, f.float(row.Value)}); err != nil {
						return fmt.Errorf("failed to write CSV row for %s: %w", row.EntityID, err)
					}
				}
				return nil
			})
		},
	)
}

func writeVersionTable(w io.Writer, v *version.Version, f formatters, p palette) error {
	if _, err := fmt.Fprintf(w, "Version %d %q (%s)\n", v.Number, v.Name, statusLabel(v, p)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Organization %s, forecast from %s for %d months\n", v.OrganizationID, v.StartMonth, v.Horizon); err != nil {
		return err
	}

	headers := []string{"Entity", "Name", "CMGR", "Historical", "Forecast"}
	var data [][]string
	for _, e := range v.Entities {
		cmgr := f.percent(e.CMGR)
		switch {
		case e.Insufficient:
			cmgr = p.yellow("insufficient history")
		case e.CMGROverridden:
			cmgr += " (override)"
		}
		data = append(data, []string{
			e.EntityID,
			e.EntityName,
			cmgr,
			f.float(e.HistoricalTotal),
			f.float(e.ForecastTotal),
		})
	}
	if err := writeTable(w, headers, data); err != nil {
		return err
	}

	s := v.Summary
	_, err := fmt.Fprintf(w, "Historical total: %s, Forecast total: %s, Avg monthly: %s, Growth: %s\n",
		f.float(s.HistoricalTotal), f.float(s.ForecastedTotal), f.float(s.AvgMonthlyForecast), p.signed(s.GrowthRate, f.percent(s.GrowthRate)))
	return err
}

// WriteComparison renders the difference between two versions.
func WriteComparison(w io.Writer, c *version.Comparison, cfg *config.Config) error {
	f := formatters{precision: cfg.Precision}
	p := newPalette(cfg.UseColors)
	return dispatch(cfg,
		func() error { return writeComparisonTable(w, c, f, p) },
		func() error { return writeJSON(w, c) },
		func() error { return writeComparisonCSV(w, c) },
	)
}

func presence(ed version.EntityDelta) string {
	switch {
	case ed.InFrom && ed.InTo:
		return "both"
	case ed.InTo:
		return "added"
	default:
		return "removed"
	}
}

func writeComparisonTable(w io.Writer, c *version.Comparison, f formatters, p palette) error {
	if _, err := fmt.Fprintf(w, "Comparing version %d to version %d\n", c.FromNumber, c.ToNumber); err != nil {
		return err
	}

	headers := []string{"Entity", "Presence", "From", "To", "Change", "Change %", "CMGR From", "CMGR To"}
	var data [][]string
	for _, ed := range c.Entities {
		d := ed.ForecastTotal
		data = append(data, []string{
			ed.EntityID,
			presence(ed),
			f.float(d.From),
			f.float(d.To),
			p.signed(d.Change, f.float(d.Change)),
			p.signed(d.PercentChange, fmt.Sprintf("%.*f%%", f.precision, d.PercentChange)),
			f.percent(ed.CMGR.From),
			f.percent(ed.CMGR.To),
		})
	}
	if err := writeTable(w, headers, data); err != nil {
		return err
	}

	t := c.ForecastedTotal
	_, err := fmt.Fprintf(w, "Forecast total: %s -> %s (%s)\n", f.float(t.From), f.float(t.To), p.signed(t.Change, f.float(t.Change)))
	return err
}

// writeComparisonCSV writes one row per entity month.
func writeComparisonCSV(w io.Writer, c *version.Comparison) error {
	header := []string{"entity_id", "month", "from", "to", "change", "percent_change"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, ed := range c.Entities {
			for _, md := range ed.Months {
				row := []string{
					ed.EntityID,
					md.Month.String(),
					strconv.FormatFloat(md.From, 'f', -1, 64),
					strconv.FormatFloat(md.To, 'f', -1, 64),
					strconv.FormatFloat(md.Change, 'f', -1, 64),
					strconv.FormatFloat(md.PercentChange, 'f', -1, 64),
				}
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("failed to write CSV row for %s: %w", ed.EntityID, err)
				}
			}
		}
		return nil
	})
}

// ExportVersions writes versions in the export format.
func ExportVersions(w io.Writer, versions []*version.Version, format config.ExportFormat) error {
	switch format {
	case config.JSONExport:
		return writeJSON(w, versions)
	default:
		return version.ExportParquet(w, versions)
	}
}
