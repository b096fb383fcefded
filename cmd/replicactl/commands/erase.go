package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// EraseCmd removes a conversation record.
var EraseCmd = &cobra.Command{
	Use:   "erase <id>",
	Short: "Remove a conversation record",
	Long: `Remove a conversation record from the local state. Flags select the
conversation kind the same way as set-read.

Examples:
  replicactl erase 05ab..cd
  replicactl erase 05ab..cd --legacy-group
  replicactl erase <pubkey-hex> --open-url https://example.org --open-room lobby`,
	Args: cobra.ExactArgs(1),
	RunE: runErase,
}

var (
	eraseLegacyGroup bool
	eraseOpenURL     string
	eraseOpenRoom    string
)

func init() {
	EraseCmd.Flags().BoolVar(&eraseLegacyGroup, "legacy-group", false, "Treat <id> as a legacy closed group ID")
	EraseCmd.Flags().StringVar(&eraseOpenURL, "open-url", "", "Open group server base URL (makes <id> the server pubkey)")
	EraseCmd.Flags().StringVar(&eraseOpenRoom, "open-room", "", "Open group room token")
}

func runErase(cmd *cobra.Command, args []string) error {
	id := args[0]

	c, err := openConversations()
	if err != nil {
		return err
	}
	defer c.Destroy()

	var removed bool
	switch {
	case eraseOpenURL != "":
		if eraseOpenRoom == "" {
			return fmt.Errorf("--open-url requires --open-room")
		}
		removed, err = c.EraseOpenGroup(eraseOpenURL, eraseOpenRoom, mustPubkey(id))
	case eraseLegacyGroup:
		removed, err = c.EraseLegacyGroup(id)
	default:
		removed, err = c.EraseOneToOne(id)
	}
	if err != nil {
		return err
	}

	if !removed {
		pterm.Warning.Println("No such conversation record")
		return nil
	}
	if err := saveState(c); err != nil {
		return err
	}
	pterm.Success.Println("Conversation record removed")
	return nil
}
