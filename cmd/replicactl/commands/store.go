package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/murmurchat/replica/convo"
	"github.com/murmurchat/replica/logger"
)

// openConversations loads the conversation state from the snapshot file,
// or starts empty if none exists yet. Callers must Destroy the result.
func openConversations() (*convo.Conversations, error) {
	secret, err := loadSecret()
	if err != nil {
		return nil, err
	}

	statePath := settings().GetString("state_path")
	dump, err := os.ReadFile(statePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read state file %s: %w", statePath, err)
		}
		dump = nil
	}

	c, err := convo.New(secret, dump, logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation state: %w", err)
	}
	return c, nil
}

// saveState writes the snapshot back if anything changed.
func saveState(c *convo.Conversations) error {
	if !c.NeedsDump() {
		return nil
	}
	dump, err := c.Dump()
	if err != nil {
		return fmt.Errorf("failed to snapshot state: %w", err)
	}

	statePath := settings().GetString("state_path")
	if err := os.MkdirAll(filepath.Dir(statePath), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(statePath, dump, 0o600); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", statePath, err)
	}
	return nil
}
