package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// versionCmd shows the verbose version for diagnostic purposes.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of forecaster.",
	Long: `Display version information including build details.

Shows:
- Release version
- Git commit hash
- Build timestamp
- Go runtime version`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("forecaster CLI\n")
		cmd.Printf("  Version: %s\n", buildVersion)
		cmd.Printf("  Commit:  %s\n", buildCommit)
		cmd.Printf("  Built:   %s\n", buildDate)
		cmd.Printf("  Runtime: %s\n", runtime.Version())
	},
}

// logFatal prints the error and exits.
func logFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}
