package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/postmaster/internal/telemetry"
	"github.com/marmos91/postmaster/pkg/auth/password"
	"github.com/marmos91/postmaster/pkg/controlplane/api"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
	ext "github.com/marmos91/postmaster/pkg/extensions"
)

// Config represents the Postmaster configuration.
//
// This structure captures the static configuration of the server:
//   - Logging configuration
//   - Server settings (shutdown timeout, metrics, API)
//   - Database connection
//   - Administration defaults (password scheme, authentication type)
//   - Audit log retention
//
// Accounts, domains, mailboxes and the runtime settings table are managed
// through the REST API and stored in the database. The admin section only
// provides defaults until a setting is saved there.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (POSTMASTER_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database configures the persistent store (SQLite or PostgreSQL).
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ControlPlane contains REST API server configuration
	ControlPlane api.APIConfig `mapstructure:"controlplane" yaml:"controlplane"`

	// Admin holds the administration defaults.
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`

	// Audit controls history retention.
	Audit AuditConfig `mapstructure:"audit" yaml:"audit"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// TelemetryConfig controls OpenTelemetry tracing. Spans cover API requests
// and lifecycle event dispatch.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// TLS enables TLS towards the collector.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// SampleRate is the fraction of traces kept (0.0 to 1.0)
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1" yaml:"sample_rate"`

	// Profiling configures Pyroscope continuous profiling.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint"`

	// ProfileTypes lists the collected profiles.
	// Default: cpu, alloc_space, inuse_space, goroutines
	ProfileTypes []string `mapstructure:"profile_types" validate:"dive,profile_type" yaml:"profile_types"`
}

// TracingConfig converts the telemetry section for telemetry.Init.
func (c *Config) TracingConfig(version string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    telemetry.DefaultServiceName,
		ServiceVersion: version,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       !c.Telemetry.TLS,
		SampleRate:     c.Telemetry.SampleRate,
	}
}

// ProfilingConfig converts the profiling section for telemetry.InitProfiling.
func (c *Config) ProfilingConfig(version string) telemetry.ProfilingConfig {
	return telemetry.ProfilingConfig{
		Enabled:        c.Telemetry.Profiling.Enabled,
		ServiceName:    telemetry.DefaultServiceName,
		ServiceVersion: version,
		Endpoint:       c.Telemetry.Profiling.Endpoint,
		ProfileTypes:   c.Telemetry.Profiling.ProfileTypes,
	}
}

// AdminConfig contains the administration defaults.
type AdminConfig struct {
	// Username is the superuser created on first start.
	// Default: "admin"
	Username string `mapstructure:"username" yaml:"username"`

	// PasswordScheme is used to encode new passwords.
	// Default: sha512crypt
	PasswordScheme string `mapstructure:"password_scheme" validate:"required,password_scheme" yaml:"password_scheme"`

	// AuthenticationType is "local" or "external".
	AuthenticationType string `mapstructure:"authentication_type" validate:"required,oneof=local external" yaml:"authentication_type"`

	// SettingsPollInterval is how often the settings table is re-read.
	SettingsPollInterval time.Duration `mapstructure:"settings_poll_interval" validate:"gt=0" yaml:"settings_poll_interval"`

	// MediaRoot holds one directory per enabled extension that needs one.
	MediaRoot string `mapstructure:"media_root" validate:"required" yaml:"media_root"`
}

// AuditConfig controls the history sweeper.
type AuditConfig struct {
	// Retention is how long history entries are kept. Zero keeps them forever.
	Retention time.Duration `mapstructure:"retention" validate:"gte=0" yaml:"retention"`

	// Schedule is a five-field cron expression.
	// Default: "0 3 * * *"
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

// RuntimeOptions converts the configuration into runtime options.
func (c *Config) RuntimeOptions(extensions ...ext.Extension) runtime.Options {
	scheme, _ := password.ParseScheme(c.Admin.PasswordScheme)
	return runtime.Options{
		PasswordScheme:       scheme,
		AuthenticationType:   c.Admin.AuthenticationType,
		AdminUsername:        c.Admin.Username,
		SettingsPollInterval: c.Admin.SettingsPollInterval,
		MediaRoot:            c.Admin.MediaRoot,
		AuditRetention:       c.Audit.Retention,
		AuditSchedule:        c.Audit.Schedule,
		ShutdownTimeout:      c.ShutdownTimeout,
		Extensions:           extensions,
	}
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (POSTMASTER_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  postmaster init\n\n"+
				"Or specify a custom config file:\n"+
				"  postmaster <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  postmaster init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file carries the JWT secret and possibly a database password.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: POSTMASTER_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("POSTMASTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		databaseTypeDecodeHook(),
	)
}

// durationDecodeHook converts strings like "30s", "5m" or "720h" to
// time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// databaseTypeDecodeHook normalizes the database type ("SQLite", "postgresql").
func databaseTypeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(store.DatabaseType("")) {
			return data, nil
		}
		s, ok := data.(string)
		if !ok {
			return data, nil
		}
		switch t := strings.ToLower(strings.TrimSpace(s)); t {
		case "postgresql", "pg":
			return store.DatabaseTypePostgres, nil
		default:
			return store.DatabaseType(t), nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "postmaster")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "postmaster")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
