// Package output renders command results as tables, JSON or CSV.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/ledgerpulse/go-forecaster/internal/config"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// SelectOutputFile returns stdout for an empty path and otherwise creates the file.
func SelectOutputFile(outputFile string) (*os.File, error) {
	if outputFile == "" {
		return os.Stdout, nil
	}
	file, err := os.Create(outputFile)
	if err != nil {
		return nil, fmt.Errorf("cannot create output file %s: %w", outputFile, err)
	}
	return file, nil
}

// WriteWithFile handles the common pattern of opening a file, writing to it, and cleaning up.
func WriteWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		_, _ = fmt.Fprintf(os.Stderr, "%s to %s\n", successMsg, outputFile)
	}
	return nil
}

// writeJSON is a generic JSON encoder that handles indentation consistently.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeCSVWithHeader writes a header followed by the rows produced by writeRows.
func writeCSVWithHeader(w io.Writer, header []string, writeRows func(*csv.Writer) error) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := writeRows(csvWriter); err != nil {
		return err
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// writeTable renders the rows under headers with numeric friendly right alignment.
func writeTable(w io.Writer, headers []string, data [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// dispatch runs the writer matching the configured output mode.
func dispatch(cfg *config.Config, table, jsonOut, csvOut func() error) error {
	switch cfg.Output {
	case config.JSONOut:
		if err := jsonOut(); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case config.CSVOut:
		if err := csvOut(); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	default:
		if err := table(); err != nil {
			return fmt.Errorf("error writing table output: %w", err)
		}
	}
	return nil
}

type palette struct {
	red, green, yellow func(...any) string
}

func newPalette(useColors bool) palette {
	if !useColors {
		return palette{red: fmt.Sprint, green: fmt.Sprint, yellow: fmt.Sprint}
	}
	return palette{
		red:    color.New(color.FgRed).SprintFunc(),
		green:  color.New(color.FgGreen).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
	}
}

// signed colors a change green when it grows and red when it shrinks.
func (p palette) signed(v float64, s string) string {
	switch {
	case v > 0:
		return p.green("+" + s)
	case v < 0:
		return p.red(s)
	default:
		return p.yellow(s)
	}
}

// formatters bundles the number formatting for a precision.
type formatters struct {
	precision int
}

func (f formatters) float(v float64) string {
	return fmt.Sprintf("%.*f", f.precision, v)
}

func (f formatters) percent(v float64) string {
	return fmt.Sprintf("%.*f%%", f.precision, v*100)
}
