package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ledgerpulse/go-forecaster/correlation"
	"github.com/ledgerpulse/go-forecaster/internal/config"
)

// WriteCorrelations renders correlation results in rank order.
func WriteCorrelations(w io.Writer, results []*correlation.Result, cfg *config.Config) error {
	f := formatters{precision: cfg.Precision}
	p := newPalette(cfg.UseColors)
	return dispatch(cfg,
		func() error { return writeCorrelationTable(w, results, f, p) },
		func() error { return writeJSON(w, results) },
		func() error { return writeCorrelationCSV(w, results) },
	)
}

func writeCorrelationTable(w io.Writer, results []*correlation.Result, f formatters, p palette) error {
	headers := []string{"Rank", "Series A", "Series B", "Lag", "r", "p-value", "Strength", "Direction", "Shared"}

	var data [][]string
	for i, r := range results {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			r.SeriesA,
			r.SeriesB,
			strconv.Itoa(r.Lag),
			p.signed(r.R, f.float(r.R)),
			fmt.Sprintf("%.4f", r.PValue),
			string(r.Strength),
			string(r.Direction),
			strconv.Itoa(r.SharedMonths),
		})
	}

	if err := writeTable(w, headers, data); err != nil {
		return err
	}
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No computable correlations")
		return err
	}
	return nil
}

func writeCorrelationCSV(w io.Writer, results []*correlation.Result) error {
	header := []string{"series_a", "series_b", "lag", "r", "p_value", "strength", "direction", "shared_months"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range results {
			row := []string{
				r.SeriesA,
				r.SeriesB,
				strconv.Itoa(r.Lag),
				strconv.FormatFloat(r.R, 'f', -1, 64),
				strconv.FormatFloat(r.PValue, 'f', -1, 64),
				string(r.Strength),
				string(r.Direction),
				strconv.Itoa(r.SharedMonths),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row for %s/%s: %w", r.SeriesA, r.SeriesB, err)
			}
		}
		return nil
	})
}

// WriteClusters renders each cluster with its members.
func WriteClusters(w io.Writer, clusters []correlation.Cluster, cfg *config.Config) error {
	f := formatters{precision: cfg.Precision}
	return dispatch(cfg,
		func() error { return writeClusterTable(w, clusters, f) },
		func() error { return writeJSON(w, clusters) },
		func() error { return writeClusterCSV(w, clusters) },
	)
}

func writeClusterTable(w io.Writer, clusters []correlation.Cluster, f formatters) error {
	headers := []string{"Cluster", "Size", "Avg |r|", "Members"}

	var data [][]string
	for i, c := range clusters {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(len(c.Members)),
			f.float(c.AvgAbsR),
			strings.Join(c.Members, ", "),
		})
	}

	if err := writeTable(w, headers, data); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Found %d clusters\n", len(clusters))
	return err
}

// writeClusterCSV writes one row per cluster member.
func writeClusterCSV(w io.Writer, clusters []correlation.Cluster) error {
	header := []string{"cluster", "entity_id", "avg_abs_r"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for i, c := range clusters {
			for _, m := range c.Members {
				row := []string{strconv.Itoa(i + 1), m, strconv.FormatFloat(c.AvgAbsR, 'f', -1, 64)}
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("failed to write CSV row for cluster %d: %w", i+1, err)
				}
			}
		}
		return nil
	})
}
