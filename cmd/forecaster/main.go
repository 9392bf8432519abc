// main is the entry point of the forecaster CLI.
package main

import (
	"fmt"
	"os"

	"github.com/ledgerpulse/go-forecaster/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
