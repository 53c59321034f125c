package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/postmaster/internal/telemetry"
	"github.com/marmos91/postmaster/pkg/auth/password"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/accounts"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/audit"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyShutdownTimeoutDefaults(cfg)
	cfg.Database.ApplyDefaults()
	applyMetricsDefaults(&cfg.Metrics)
	applyTelemetryDefaults(&cfg.Telemetry)
	cfg.ControlPlane.ApplyDefaults()
	applyAdminDefaults(&cfg.Admin, &cfg.Database)
	applyAuditDefaults(&cfg.Audit)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetricsDefaults sets the port only when metrics are enabled.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = append([]string(nil), telemetry.DefaultProfileTypes...)
	}
}

// applyAdminDefaults fills the administration defaults. The media root
// sits next to the SQLite database when one is configured.
func applyAdminDefaults(cfg *AdminConfig, db *store.Config) {
	if cfg.Username == "" {
		cfg.Username = accounts.DefaultAdminUsername
	}
	if cfg.PasswordScheme == "" {
		cfg.PasswordScheme = string(password.DefaultScheme)
	}
	cfg.PasswordScheme = strings.ToLower(cfg.PasswordScheme)
	if cfg.AuthenticationType == "" {
		cfg.AuthenticationType = runtime.AuthLocal
	}
	if cfg.SettingsPollInterval == 0 {
		cfg.SettingsPollInterval = runtime.DefaultPollInterval
	}
	if cfg.MediaRoot == "" {
		if db.Type == store.DatabaseTypeSQLite && db.SQLite.Path != "" {
			cfg.MediaRoot = filepath.Join(filepath.Dir(db.SQLite.Path), "media")
		} else {
			cfg.MediaRoot = filepath.Join(getConfigDir(), "media")
		}
	}
}

func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.Schedule == "" {
		cfg.Schedule = audit.DefaultSchedule
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
