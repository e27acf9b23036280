package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryanmcguirecode/batchdesk/internal/emulator"
)

var emulatorCmd = &cobra.Command{
	Use:   "emulator",
	Short: "Manage the local Firestore emulator container",
	Long: `Manage the Firestore emulator container lifecycle.

The emulator runs in a Docker container and holds no durable data; it is
meant for local development and integration tests. Point the server at it
with 'batchdesk serve --emulator', or export FIRESTORE_EMULATOR_HOST.

Examples:
  batchdesk emulator start    # Start the emulator container
  batchdesk emulator stop     # Stop the container
  batchdesk emulator status   # Check container status
  batchdesk emulator remove   # Remove the container`,
}

var emulatorStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Firestore emulator container",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := emulator.NewManager(emulator.Config{})
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting Firestore emulator...")
		if err := mgr.Start(cmd.Context()); err != nil {
			return fmt.Errorf("failed to start emulator: %w", err)
		}

		fmt.Printf("Emulator is running at %s\n", mgr.Host())
		fmt.Printf("Export FIRESTORE_EMULATOR_HOST=%s to use it\n", mgr.Host())
		return nil
	},
}

var emulatorStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Firestore emulator container",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := emulator.NewManager(emulator.Config{})
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping Firestore emulator...")
		if err := mgr.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop emulator: %w", err)
		}

		fmt.Println("Emulator stopped")
		return nil
	},
}

var emulatorStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Firestore emulator container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := emulator.NewManager(emulator.Config{})
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case emulator.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("Host: %s\n", mgr.Host())
		case emulator.StatusStopped:
			fmt.Printf("Status: %s (use 'batchdesk emulator start' to start)\n", status)
		case emulator.StatusNotFound:
			fmt.Printf("Status: %s (use 'batchdesk emulator start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}

		return nil
	},
}

var emulatorRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the Firestore emulator container",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := emulator.NewManager(emulator.Config{})
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing emulator container...")
		if err := mgr.Remove(cmd.Context()); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}

		fmt.Println("Emulator container removed")
		return nil
	},
}

func init() {
	emulatorCmd.AddCommand(emulatorStartCmd)
	emulatorCmd.AddCommand(emulatorStopCmd)
	emulatorCmd.AddCommand(emulatorStatusCmd)
	emulatorCmd.AddCommand(emulatorRemoveCmd)

	rootCmd.AddCommand(emulatorCmd)
}
