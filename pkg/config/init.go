package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# Postmaster Configuration File
#
# Accounts, domains, mailboxes and runtime settings live in the database
# and are managed through the REST API or the postmaster CLI.
#
# Every key can be overridden with a POSTMASTER_* environment variable,
# e.g. POSTMASTER_LOGGING_LEVEL=DEBUG.

`

// InitConfig writes a sample configuration to the default location and
// returns its path.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration with a fresh JWT secret
// to path. An existing file is only replaced when force is set.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := GetDefaultConfig()
	// Keep the database and media next to the config file.
	dir := filepath.Dir(path)
	cfg.Database.SQLite.Path = filepath.Join(dir, "postmaster.db")
	cfg.Admin.MediaRoot = filepath.Join(dir, "media")

	secret, err := generateSecret()
	if err != nil {
		return err
	}
	cfg.ControlPlane.JWT.Secret = secret

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateSecret returns 64 hex characters of randomness.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
