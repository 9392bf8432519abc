package cmd

import (
	"io"

	"github.com/ledgerpulse/go-forecaster"
	"github.com/ledgerpulse/go-forecaster/internal/output"
	"github.com/spf13/cobra"
)

// plotCmd renders a version as an HTML page of line charts.
var plotCmd = &cobra.Command{
	Use:   "plot [version-id]",
	Short: "Render the baseline and forecast of a version as HTML charts",
	Long: `Render one line chart per entity of a version, showing the observed baseline next
to the forecast. Without an id the active version of the organization is plotted.

Examples:
  # Plot the active version
  forecaster plot --org acme --output-file forecast.html

  # Plot a specific version
  forecaster plot 6f1c2b1e-0d7a-4d55-9d57-1c1b0b1e8f00 --output-file plan.html`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: withForecaster(func(f *forecaster.Forecaster, args []string) error {
		v, err := getOrActive(f, args)
		if err != nil {
			return err
		}
		return output.WriteWithFile(cfg.OutputFile, func(w io.Writer) error {
			return forecaster.PlotVersion(w, v)
		}, "Wrote plot")
	}),
}
