package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ryanmcguirecode/batchdesk/internal/config"
	"github.com/ryanmcguirecode/batchdesk/internal/emulator"
	"github.com/ryanmcguirecode/batchdesk/internal/home"
	"github.com/ryanmcguirecode/batchdesk/internal/server"
	"github.com/ryanmcguirecode/batchdesk/internal/store"
)

var (
	serveHost     string
	servePort     string
	serveMemory   bool
	serveEmulator bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Batchdesk server",
	Long: `Start the Batchdesk HTTP server.

The server needs a Firestore backend. Point it at a project with
firestore.project_id in the config (or BATCHDESK_FIRESTORE_PROJECT_ID),
or use --emulator to run against a local Firestore emulator container.
--memory runs entirely in process and loses all state on exit; it is
meant for local development only.

Examples:
  batchdesk serve                  # Use the configured Firestore project
  batchdesk serve --emulator       # Start a local emulator container first
  batchdesk serve --memory         # In-memory store, no persistence
  batchdesk serve --port 3000      # Custom listen port`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cm.WatchConfig()
		cfg := cm.Get()

		host := cfg.Server.Host
		port := cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		st, err := buildStore(cmd, cfg, logger)
		if err != nil {
			return err
		}

		srv, err := server.New(server.Config{
			Host:       host,
			Port:       port,
			Store:      st,
			Logger:     logger,
			Assignment: cfg.Assignment,
			Sweep:      cfg.Sweep,
		})
		if err != nil {
			return err
		}

		// Blocks until shutdown
		return srv.Start(ctx)
	},
}

// buildStore picks the store backend from flags and config.
func buildStore(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	ctx := cmd.Context()

	if serveMemory {
		logger.Warn("using in-memory store, all state is lost on exit")
		return store.NewMemory(), nil
	}

	projectID := cfg.Firestore.ProjectID

	if serveEmulator {
		mgr, err := emulator.NewManager(emulator.Config{})
		if err != nil {
			return nil, err
		}
		defer mgr.Close()

		logger.Info("starting firestore emulator", "container", emulator.DefaultContainerName)
		if err := mgr.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start emulator: %w", err)
		}

		// The firestore client switches to emulator mode via this variable.
		if err := os.Setenv("FIRESTORE_EMULATOR_HOST", mgr.Host()); err != nil {
			return nil, err
		}
		if projectID == "" {
			projectID = "batchdesk-dev"
		}
	}

	if projectID == "" {
		return nil, fmt.Errorf("firestore.project_id is required (or use --memory / --emulator)")
	}

	return store.NewFirestore(ctx, store.FirestoreConfig{
		ProjectID:              projectID,
		BatchCollection:        cfg.Firestore.BatchCollection,
		DocumentCollection:     cfg.Firestore.DocumentCollection,
		OrganizationCollection: cfg.Firestore.OrganizationCollection,
	})
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Use the in-memory store (development only)")
	serveCmd.Flags().BoolVar(&serveEmulator, "emulator", false, "Run against a local Firestore emulator container")

	rootCmd.AddCommand(serveCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write the default configuration to ~/.batchdesk/config.yaml,
or to the path given with --config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			h, err := home.New("")
			if err != nil {
				return err
			}
			if err := h.EnsureExists(); err != nil {
				return err
			}
			if h.ConfigExists() {
				return fmt.Errorf("%s already exists", h.ConfigPath())
			}
			path = h.ConfigPath()
		} else if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}

		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}
