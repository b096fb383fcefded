package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/murmurchat/replica/convo"
)

// ShowCmd prints every conversation record.
var ShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all conversation records",
	Long: `Display every conversation record in the local state: one-to-one
chats, open groups, and legacy closed groups, with read markers and
disappearing-message settings.`,
	RunE: runShow,
}

var showFormat string

func init() {
	ShowCmd.Flags().StringVar(&showFormat, "format", "toml", "Output format: toml, json, yaml")
}

type showRecord struct {
	Kind              string `json:"kind" yaml:"kind" toml:"kind"`
	SessionID         string `json:"session_id,omitempty" yaml:"session_id,omitempty" toml:"session_id,omitempty"`
	BaseURL           string `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	Room              string `json:"room,omitempty" yaml:"room,omitempty" toml:"room,omitempty"`
	Pubkey            string `json:"pubkey,omitempty" yaml:"pubkey,omitempty" toml:"pubkey,omitempty"`
	GroupID           string `json:"group_id,omitempty" yaml:"group_id,omitempty" toml:"group_id,omitempty"`
	LastRead          int64  `json:"last_read" yaml:"last_read" toml:"last_read"`
	Expiration        string `json:"expiration,omitempty" yaml:"expiration,omitempty" toml:"expiration,omitempty"`
	ExpirationMinutes int64  `json:"expiration_minutes,omitempty" yaml:"expiration_minutes,omitempty" toml:"expiration_minutes,omitempty"`
}

type showOutput struct {
	Seqno   int64        `json:"seqno" yaml:"seqno" toml:"seqno"`
	Pending bool         `json:"pending_push" yaml:"pending_push" toml:"pending_push"`
	Records []showRecord `json:"records" yaml:"records" toml:"records"`
}

func runShow(cmd *cobra.Command, args []string) error {
	c, err := openConversations()
	if err != nil {
		return err
	}
	defer c.Destroy()

	out := showOutput{
		Seqno:   c.Seqno(),
		Pending: c.NeedsPush(),
		Records: []showRecord{},
	}

	it := c.Iterate()
	for it.Next() {
		switch r := it.Value().(type) {
		case *convo.OneToOne:
			rec := showRecord{Kind: "one-to-one", SessionID: r.SessionID, LastRead: r.LastRead}
			if r.Expiration != convo.ExpirationNone {
				rec.Expiration = r.Expiration.String()
				rec.ExpirationMinutes = r.ExpirationMinutes
			}
			out.Records = append(out.Records, rec)
		case *convo.OpenGroup:
			out.Records = append(out.Records, showRecord{
				Kind:     "open-group",
				BaseURL:  r.BaseURL(),
				Room:     r.Room(),
				Pubkey:   r.PubkeyHex(),
				LastRead: r.LastRead,
			})
		case *convo.LegacyGroup:
			out.Records = append(out.Records, showRecord{
				Kind:     "legacy-group",
				GroupID:  r.ID,
				LastRead: r.LastRead,
			})
		}
	}

	switch showFormat {
	case "json":
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal to JSON: %w", err)
		}
		fmt.Println(string(data))

	case "yaml":
		data, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to marshal to YAML: %w", err)
		}
		fmt.Printf("# conversation state\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to marshal to TOML: %w", err)
		}
		fmt.Printf("# conversation state\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json, yaml)", showFormat)
	}

	return nil
}
