package commands

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var viperInstance *viper.Viper

// settings returns the process-wide settings instance.
//
// Sources, in order of precedence: REPLICA_* environment variables, then
// ~/.replica/replicactl.toml, then defaults.
func settings() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()
	v.SetEnvPrefix("REPLICA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	homeDir, _ := os.UserHomeDir()
	stateDir := filepath.Join(homeDir, ".replica")
	v.SetDefault("state_path", filepath.Join(stateDir, "conversations.state"))
	v.SetDefault("secret_file", filepath.Join(stateDir, "secret"))

	configPath := filepath.Join(stateDir, "replicactl.toml")
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		_ = v.ReadInConfig()
	}

	viperInstance = v
	return v
}

// loadSecret reads the device secret: REPLICA_SECRET takes precedence,
// otherwise the secret file. Either way it is hex, 32 or 64 bytes worth.
func loadSecret() ([]byte, error) {
	v := settings()

	raw := v.GetString("secret")
	if raw == "" {
		path := v.GetString("secret_file")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("no REPLICA_SECRET set and reading %s failed: %w", path, err)
		}
		raw = string(data)
	}

	secret, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("device secret is not hex: %w", err)
	}
	return secret, nil
}
