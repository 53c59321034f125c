package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/postmaster/pkg/auth/password"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
	"github.com/marmos91/postmaster/pkg/extensions/autoreply"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

database:
  type: sqlite
  sqlite:
    path: "` + yamlSafePath(tmpDir) + `/postmaster.db"

controlplane:
  port: 8080
  jwt:
    secret: "test-secret-key-for-testing-minimum-32-chars"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.ControlPlane.Port != 8080 {
		t.Errorf("Expected control plane port 8080, got %d", cfg.ControlPlane.Port)
	}
	if cfg.Admin.PasswordScheme != string(password.SchemeSHA512Crypt) {
		t.Errorf("Expected default password scheme sha512crypt, got %q", cfg.Admin.PasswordScheme)
	}
	if want := filepath.Join(tmpDir, "media"); cfg.Admin.MediaRoot != want {
		t.Errorf("Expected media root %q next to the database, got %q", want, cfg.Admin.MediaRoot)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.ControlPlane.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.ControlPlane.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_InvalidPasswordScheme(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
admin:
  password_scheme: rot13
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for an unknown password scheme")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
shutdown_timeout = "45s"

[logging]
level = "WARN"
format = "json"

[database]
type = "SQLite"

[audit]
retention = "720h"
schedule = "30 2 * * *"

[controlplane.jwt]
secret = "test-secret-key-for-testing-minimum-32-chars"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 45*time.Second {
		t.Errorf("Expected shutdown timeout 45s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Database.Type != store.DatabaseTypeSQLite {
		t.Errorf("Expected database type to be normalized to sqlite, got %q", cfg.Database.Type)
	}
	if cfg.Audit.Retention != 720*time.Hour {
		t.Errorf("Expected audit retention 720h, got %v", cfg.Audit.Retention)
	}
}

func TestLoad_InvalidAuditSchedule(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
audit:
  schedule: "every night"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for an invalid cron expression")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.ControlPlane.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.ControlPlane.Port)
	}
	if cfg.Admin.Username != "admin" {
		t.Errorf("Expected default admin username 'admin', got %q", cfg.Admin.Username)
	}
	if cfg.Admin.AuthenticationType != "local" {
		t.Errorf("Expected default authentication type 'local', got %q", cfg.Admin.AuthenticationType)
	}
	if cfg.Audit.Schedule != "0 3 * * *" {
		t.Errorf("Expected default audit schedule, got %q", cfg.Audit.Schedule)
	}
}

func TestRuntimeOptions(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Admin.PasswordScheme = "blfcrypt"
	cfg.Audit.Retention = 24 * time.Hour

	opts := cfg.RuntimeOptions(autoreply.New())

	if opts.PasswordScheme != password.SchemeBLFCrypt {
		t.Errorf("Expected blfcrypt scheme, got %q", opts.PasswordScheme)
	}
	if opts.AuditRetention != 24*time.Hour {
		t.Errorf("Expected audit retention 24h, got %v", opts.AuditRetention)
	}
	if opts.MediaRoot != cfg.Admin.MediaRoot {
		t.Errorf("Expected media root %q, got %q", cfg.Admin.MediaRoot, opts.MediaRoot)
	}
	if len(opts.Extensions) != 1 {
		t.Errorf("Expected one extension, got %d", len(opts.Extensions))
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if filepath.Base(GetConfigDir()) != "postmaster" {
		t.Errorf("Expected directory name 'postmaster', got %q", filepath.Base(GetConfigDir()))
	}
	if DefaultConfigExists() {
		t.Error("Expected no config in a fresh XDG_CONFIG_HOME")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("POSTMASTER_LOGGING_LEVEL", "ERROR")
	t.Setenv("POSTMASTER_CONTROLPLANE_PORT", "9091")
	t.Setenv("POSTMASTER_ADMIN_PASSWORD_SCHEME", "sha256")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

database:
  type: sqlite

controlplane:
  port: 8080
  jwt:
    secret: "test-secret-key-for-testing-minimum-32-chars"

admin:
  password_scheme: sha512crypt
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.ControlPlane.Port != 9091 {
		t.Errorf("Expected port 9091 from env var, got %d", cfg.ControlPlane.Port)
	}
	if cfg.Admin.PasswordScheme != "sha256" {
		t.Errorf("Expected scheme 'sha256' from env var, got %q", cfg.Admin.PasswordScheme)
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for a missing config file")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := GetDefaultConfig()
	cfg.ControlPlane.JWT.Secret = "test-secret-key-for-testing-minimum-32-chars"
	cfg.Audit.Retention = 90 * 24 * time.Hour

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Audit.Retention != cfg.Audit.Retention {
		t.Errorf("Expected retention %v, got %v", cfg.Audit.Retention, loaded.Audit.Retention)
	}
	if loaded.Database.SQLite.Path != cfg.Database.SQLite.Path {
		t.Errorf("Expected sqlite path %q, got %q", cfg.Database.SQLite.Path, loaded.Database.SQLite.Path)
	}
}
