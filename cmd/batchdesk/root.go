package main

import (
	"github.com/spf13/cobra"

	"github.com/ryanmcguirecode/batchdesk/internal/api"
	"github.com/ryanmcguirecode/batchdesk/version"
)

var (
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "batchdesk",
	Short: "Batch lifecycle service for human document review",
	Long: `Batchdesk groups ingested documents into bounded review batches and
coordinates the reviewers working through them.

The service provides:
  - Capacity-bounded batch assignment with oldest-first filling
  - Exclusive batch checkout for reviewers, scoped by organization
  - Heartbeat-based recovery of batches abandoned mid-review
  - Partial and full batch finalization`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.batchdesk/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}
