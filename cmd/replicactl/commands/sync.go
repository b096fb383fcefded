package commands

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// PushCmd seals current state into a blob for other devices.
var PushCmd = &cobra.Command{
	Use:   "push",
	Short: "Seal current state into a blob for other devices",
	Long: `Encode and encrypt the full conversation state into a push blob and
write it to --out. Other devices merge it with 'replicactl pull'. The blob
is sealed; the shared storage it travels through learns nothing about its
contents.`,
	RunE: runPush,
}

// PullCmd merges blobs pushed by other devices.
var PullCmd = &cobra.Command{
	Use:   "pull <blob-file>...",
	Short: "Merge blobs pushed by other devices",
	Long: `Decrypt and merge one or more push blobs into the local state. Blobs
that fail to authenticate or decode are skipped; the rest still apply.
Blobs this device already merged are recognized and make no change.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPull,
}

var pushOut string

func init() {
	PushCmd.Flags().StringVar(&pushOut, "out", "", "File to write the push blob to (required)")
	_ = PushCmd.MarkFlagRequired("out")
}

func runPush(cmd *cobra.Command, args []string) error {
	c, err := openConversations()
	if err != nil {
		return err
	}
	defer c.Destroy()

	blob, ns, err := c.Push()
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	if err := os.WriteFile(pushOut, blob, 0o600); err != nil {
		return fmt.Errorf("failed to write blob to %s: %w", pushOut, err)
	}
	if err := saveState(c); err != nil {
		return err
	}

	pterm.Success.Printf("Pushed seqno %d (%d bytes) to %s\n", c.Seqno(), len(blob), pushOut)
	pterm.Info.Printf("Store the blob under namespace %s\n", ns)
	return nil
}

func runPull(cmd *cobra.Command, args []string) error {
	c, err := openConversations()
	if err != nil {
		return err
	}
	defer c.Destroy()

	blobs := make([][]byte, 0, len(args))
	for _, path := range args {
		blob, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read blob %s: %w", path, err)
		}
		blobs = append(blobs, blob)
	}

	applied := c.PullAll(blobs...)
	if err := saveState(c); err != nil {
		return err
	}

	if applied < len(blobs) {
		pterm.Warning.Printf("Merged %d/%d blobs; the rest were rejected\n", applied, len(blobs))
	} else {
		pterm.Success.Printf("Merged %d blob(s)\n", applied)
	}
	pterm.Info.Printf("State now at seqno %d with %d conversation(s)\n", c.Seqno(), c.Size())
	return nil
}
