// Package commands contains all CLI command definitions.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates and returns the root command for the CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "csv-etl",
		Short:         "Convert CSV files with declarative rule sets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newConvertCmd())
	rootCmd.AddCommand(newValidateCmd())

	return rootCmd
}
