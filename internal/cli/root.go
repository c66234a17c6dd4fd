// Package cli implements lpctl, the operator CLI for running imports
// without the HTTP server: file -> pipeline -> document store, with console
// progress.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "lpctl",
	Short:        "Livestock programme import tool",
	Long:         "lpctl runs tabular import files (CSV, JSON, XLSX) through the normalization pipeline and writes the records to the programme document store.",
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
