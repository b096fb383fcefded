package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/murmurchat/replica/cmd/replicactl/commands"
	"github.com/murmurchat/replica/logger"
)

var rootCmd = &cobra.Command{
	Use:   "replicactl",
	Short: "Inspect and drive a device's replicated conversation state",
	Long: `replicactl — Inspect and drive a device's replicated conversation state.

The conversation state lives encrypted in a local snapshot file. Commands
decrypt it with the device secret, apply changes, and write the snapshot
back. push and pull exchange sealed blobs with other devices through any
shared storage you point them at.

Available commands:
  show      - Show all conversation records
  set-read  - Advance a conversation's last-read marker
  erase     - Remove a conversation record
  push      - Seal current state into a blob for other devices
  pull      - Merge blobs pushed by other devices
  version   - Show version information

Examples:
  replicactl show --format json
  replicactl set-read 05ab..cd 1724500000000
  replicactl push --out /shared/dev1.blob
  replicactl pull /shared/dev2.blob`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// show writes machine-readable output; keep its stderr quiet.
		if cmd.Name() != "show" {
			if err := logger.Initialize(false); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.ShowCmd)
	rootCmd.AddCommand(commands.SetReadCmd)
	rootCmd.AddCommand(commands.EraseCmd)
	rootCmd.AddCommand(commands.PushCmd)
	rootCmd.AddCommand(commands.PullCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
