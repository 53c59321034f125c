package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/internal/telemetry"
	"github.com/marmos91/postmaster/pkg/config"
	"github.com/marmos91/postmaster/pkg/controlplane"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/postmaster/pkg/metrics/prometheus"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the postmaster server",
	Long: `Start the postmaster server with the specified configuration.

The server runs in the foreground until it receives SIGINT or SIGTERM.
On the first start an administrator account is created; its password is
printed once unless POSTMASTER_ADMIN_INITIAL_PASSWORD is set.

Examples:
  # Start with the default config location
  postmaster start

  # Start with custom config file
  postmaster start --config /etc/postmaster/config.yaml

  # Start with environment variable overrides
  POSTMASTER_LOGGING_LEVEL=DEBUG postmaster start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(cmdutil.Flags.ConfigFile)
	if err != nil {
		return err
	}

	if err := cmdutil.InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(cmdutil.Flags.ConfigFile))

	shutdownTracing, err := telemetry.Init(ctx, cfg.TracingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", logger.Err(err))
		}
	}()
	if cfg.Telemetry.Enabled {
		logger.Info("Tracing enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}

	stopProfiling, err := telemetry.InitProfiling(cfg.ProfilingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := stopProfiling(); err != nil {
			logger.Warn("Failed to stop profiler", logger.Err(err))
		}
	}()
	if cfg.Telemetry.Profiling.Enabled {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	metricsPort := 0
	if cfg.Metrics.Enabled {
		metricsPort = cfg.Metrics.Port
		logger.Info("Metrics enabled", "port", metricsPort)
	} else {
		logger.Info("Metrics collection disabled")
	}

	cp, err := controlplane.New(ctx, &controlplane.Options{
		Database:    &cfg.Database,
		API:         &cfg.ControlPlane,
		Runtime:     cfg.RuntimeOptions(cmdutil.BuiltinExtensions()...),
		MetricsPort: metricsPort,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := cp.Close(); err != nil {
			logger.Error("Failed to close database", logger.Err(err))
		}
	}()

	if password := cp.GeneratedAdminPassword(); password != "" {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "\n*** IMPORTANT: Admin account %q created with password: %s ***\n", cfg.Admin.Username, password)
		_, _ = fmt.Fprintln(out, "Please save this password. It will not be shown again; you must change it at first login.")
		_, _ = fmt.Fprintln(out)
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := cp.Serve(ctx); err != nil {
		logger.Error("Server error", logger.Err(err))
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
