package main

import (
	"github.com/spf13/cobra"

	"github.com/ryanmcguirecode/batchdesk/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Batchdesk server via HTTP.

These commands require a running server (batchdesk serve).
Use --server to specify a custom server URL.

Examples:
  batchdesk api health                   # Check server health
  batchdesk api batches list             # List batches for an organization
  batchdesk api batches acquire <id>     # Check out a batch for review`,
}

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Batch lifecycle commands",
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Document ingestion and lookup commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Documents as subcommand group
	documentsCmd.AddCommand((&endpoints.IngestEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.GetDocumentEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.AssignEndpoint{}).Command(getServerURL))

	// Batches as subcommand group
	batchesCmd.AddCommand((&endpoints.ListBatchesEndpoint{}).Command(getServerURL))
	batchesCmd.AddCommand((&endpoints.GetBatchEndpoint{}).Command(getServerURL))
	batchesCmd.AddCommand((&endpoints.AcquireEndpoint{}).Command(getServerURL))
	batchesCmd.AddCommand((&endpoints.ReleaseEndpoint{}).Command(getServerURL))
	batchesCmd.AddCommand((&endpoints.UnlockEndpoint{}).Command(getServerURL))
	batchesCmd.AddCommand((&endpoints.HeartbeatEndpoint{}).Command(getServerURL))
	batchesCmd.AddCommand((&endpoints.SaveProgressEndpoint{}).Command(getServerURL))
	batchesCmd.AddCommand((&endpoints.FinalizeEndpoint{}).Command(getServerURL))

	// Sweep at top level of api
	apiCmd.AddCommand((&endpoints.SweepEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(batchesCmd)
	apiCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(apiCmd)
}
