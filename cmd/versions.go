package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/ledgerpulse/go-forecaster"
	"github.com/ledgerpulse/go-forecaster/internal/config"
	"github.com/ledgerpulse/go-forecaster/internal/output"
	"github.com/ledgerpulse/go-forecaster/version"
	"github.com/spf13/cobra"
)

var errParquetToStdout = errors.New("parquet exports need --output-file")

// versionsCmd groups the forecast version management commands.
var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Create, publish and compare numbered forecast versions",
	Long: `Manage the forecast versions of an organization.

Each version is an immutable snapshot of the forecasts, adjustments and summary of a run,
numbered 1, 2, 3 and so on per organization. Versions start as drafts, can be published
and are finally archived. Publishing a version makes it the single active version of its
organization.

Supported backends: SQLite (default), PostgreSQL, MySQL or memory. With --redis-url the
version numbers are handed out by a Redis counter.

Subcommands:
  create  - Forecast the inputs and store the result as a draft
  list    - List the versions of the organization
  show    - Show a version, or the active one
  publish - Publish a version and make it active
  archive - Archive a version
  compare - Compare the forecasts of two versions
  export  - Export versions to Parquet or JSON`,
}

// versionsCreateCmd forecasts the inputs and stores the result.
var versionsCreateCmd = &cobra.Command{
	Use:   "create [input-files...]",
	Short: "Forecast the inputs and store the result as the next draft version",
	Long: `Forecast every input series and store the forecasts, adjustments and summary as the
next numbered draft version of the organization.

Examples:
  # Create a draft from the latest exports
  forecaster versions create export.json --name "Q3 plan" --created-by finance

  # Create a draft with overrides in PostgreSQL
  forecaster versions create export.json --adjustments overrides.json \
    --backend postgres --dsn "host=localhost dbname=forecaster"`,
	PreRunE: inputSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		series, err := loadSeries()
		if err != nil {
			return err
		}
		adjs, err := loadAdjustments()
		if err != nil {
			return err
		}

		f, cleanup, err := openForecaster(rootCtx)
		if err != nil {
			return err
		}
		defer cleanup()

		v, err := f.CreateVersion(rootCtx, version.Request{
			OrganizationID: cfg.Organization,
			Name:           cfg.Name,
			Notes:          cfg.Notes,
			CreatedBy:      cfg.CreatedBy,
			Start:          cfg.Start,
			Horizon:        cfg.Horizon,
			Adjustments:    adjs,
		}, series)
		if err != nil {
			return err
		}
		return writeVersion(v)
	},
}

// versionsListCmd lists the versions of the organization.
var versionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the versions of the organization, newest first",
	Long: `List the versions of the organization, newest first.

Examples:
  # List every version
  forecaster versions list --org acme

  # Only published versions as CSV
  forecaster versions list --org acme --status published --output csv`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	RunE: withForecaster(func(f *forecaster.Forecaster, _ []string) error {
		versions, err := f.ListVersions(rootCtx, cfg.Organization, cfg.Status)
		if err != nil {
			return err
		}
		return output.WriteWithFile(cfg.OutputFile, func(w io.Writer) error {
			return output.WriteVersions(w, versions, cfg)
		}, "Wrote versions")
	}),
}

// versionsShowCmd shows a single version.
var versionsShowCmd = &cobra.Command{
	Use:   "show [version-id]",
	Short: "Show a version, or the active version of the organization",
	Long: `Show the entities and summary of a version. Without an id the active version of the
organization is shown.

Examples:
  # Show the active version
  forecaster versions show --org acme

  # Show a version as JSON
  forecaster versions show 6f1c2b1e-0d7a-4d55-9d57-1c1b0b1e8f00 --output json`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: withForecaster(func(f *forecaster.Forecaster, args []string) error {
		v, err := getOrActive(f, args)
		if err != nil {
			return err
		}
		return writeVersion(v)
	}),
}

// versionsPublishCmd publishes a version.
var versionsPublishCmd = &cobra.Command{
	Use:   "publish <version-id>",
	Short: "Publish a version and make it the active version",
	Long: `Publish a draft or republish a published version. The previously active version of
the organization stays published but is no longer active. Archived versions cannot be
published.

Examples:
  forecaster versions publish 6f1c2b1e-0d7a-4d55-9d57-1c1b0b1e8f00`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: withForecaster(func(f *forecaster.Forecaster, args []string) error {
		v, err := f.PublishVersion(rootCtx, args[0])
		if err != nil {
			return err
		}
		return writeVersion(v)
	}),
}

// versionsArchiveCmd archives a version.
var versionsArchiveCmd = &cobra.Command{
	Use:   "archive <version-id>",
	Short: "Archive a version",
	Long: `Archive a version. Archiving is final and deactivates the version.

Examples:
  forecaster versions archive 6f1c2b1e-0d7a-4d55-9d57-1c1b0b1e8f00`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: withForecaster(func(f *forecaster.Forecaster, args []string) error {
		v, err := f.ArchiveVersion(rootCtx, args[0])
		if err != nil {
			return err
		}
		return writeVersion(v)
	}),
}

// versionsCompareCmd compares two versions.
var versionsCompareCmd = &cobra.Command{
	Use:   "compare <from-version-id> <to-version-id>",
	Short: "Compare the forecasts of two versions",
	Long: `Report how the summary, entity totals and monthly forecasts changed from one version
to another. Entities present in only one version are compared against zeros.

Examples:
  forecaster versions compare 6f1c2b1e-0d7a-4d55-9d57-1c1b0b1e8f00 0a4e9c52-52a1-4c1e-8a62-3d2b7d0f4a11`,
	Args:    cobra.ExactArgs(2),
	PreRunE: sharedSetupWrapper,
	RunE: withForecaster(func(f *forecaster.Forecaster, args []string) error {
		c, err := f.CompareVersions(rootCtx, args[0], args[1])
		if err != nil {
			return err
		}
		return output.WriteWithFile(cfg.OutputFile, func(w io.Writer) error {
			return output.WriteComparison(w, c, cfg)
		}, "Wrote comparison")
	}),
}

// versionsExportCmd exports versions for offline analysis.
var versionsExportCmd = &cobra.Command{
	Use:   "export [version-ids...]",
	Short: "Export versions to Parquet or JSON for analytics tools",
	Long: `Export versions to a Parquet file with one row per version, entity, kind and month,
or to JSON. Without ids every version of the organization is exported.

Parquet exports require --output-file.

Examples:
  # Export every version for DuckDB
  forecaster versions export --org acme --output-file versions.parquet
  duckdb -c "SELECT entity_id, month, value FROM read_parquet('versions.parquet') WHERE kind = 'forecast'"

  # Export one version as JSON
  forecaster versions export 6f1c2b1e-0d7a-4d55-9d57-1c1b0b1e8f00 --format json`,
	PreRunE: sharedSetupWrapper,
	RunE: withForecaster(func(f *forecaster.Forecaster, args []string) error {
		if cfg.Format == config.ParquetExport && cfg.OutputFile == "" {
			return errParquetToStdout
		}

		var versions []*version.Version
		if len(args) == 0 {
			all, err := f.ListVersions(rootCtx, cfg.Organization, cfg.Status)
			if err != nil {
				return err
			}
			versions = all
		}
		for _, id := range args {
			v, err := f.GetVersion(rootCtx, id)
			if err != nil {
				return fmt.Errorf("unable to load version %s: %w", id, err)
			}
			versions = append(versions, v)
		}

		return output.WriteWithFile(cfg.OutputFile, func(w io.Writer) error {
			return output.ExportVersions(w, versions, cfg.Format)
		}, fmt.Sprintf("Exported %d versions", len(versions)))
	}),
}

// withForecaster opens the version store around run.
func withForecaster(run func(*forecaster.Forecaster, []string) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		f, cleanup, err := openForecaster(rootCtx)
		if err != nil {
			return err
		}
		defer cleanup()
		return run(f, args)
	}
}

// getOrActive loads the version named by args or the active version of the organization.
func getOrActive(f *forecaster.Forecaster, args []string) (*version.Version, error) {
	if len(args) == 1 {
		return f.GetVersion(rootCtx, args[0])
	}
	v, err := f.ActiveVersion(rootCtx, cfg.Organization)
	if errors.Is(err, version.ErrNotFound) {
		return nil, fmt.Errorf("organization %s has no active version: %w", cfg.Organization, err)
	}
	return v, err
}

func writeVersion(v *version.Version) error {
	return output.WriteWithFile(cfg.OutputFile, func(w io.Writer) error {
		return output.WriteVersion(w, v, cfg)
	}, "Wrote version")
}
