package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
	"github.com/marmos91/postmaster/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Load the configuration file and check every value.

Examples:
  # Validate default config
  postmaster config validate

  # Validate specific config file
  postmaster config validate --config /etc/postmaster/config.yaml`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(cmdutil.Flags.ConfigFile)
	if err != nil {
		return err
	}

	path := cmdutil.Flags.ConfigFile
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", path)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if warnings := warningsFor(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintln(out, "\nConfiguration summary:")
	_, _ = fmt.Fprintf(out, "  Database type:     %s\n", cfg.Database.Type)
	_, _ = fmt.Fprintf(out, "  API port:          %d\n", cfg.ControlPlane.Port)
	_, _ = fmt.Fprintf(out, "  Password scheme:   %s\n", cfg.Admin.PasswordScheme)
	_, _ = fmt.Fprintf(out, "  Authentication:    %s\n", cfg.Admin.AuthenticationType)
	_, _ = fmt.Fprintf(out, "  Log level:         %s\n", cfg.Logging.Level)
	return nil
}

// warningsFor lists settings that load fine but are probably mistakes.
func warningsFor(cfg *config.Config) []string {
	var warnings []string
	if !cfg.ControlPlane.HasJWTSecret() {
		warnings = append(warnings, "JWT secret not configured; API logins will fail")
	}
	if cfg.Audit.Retention == 0 {
		warnings = append(warnings, "audit.retention is 0; history is kept forever")
	}
	if _, err := os.Stat(cfg.Admin.MediaRoot); os.IsNotExist(err) {
		warnings = append(warnings, fmt.Sprintf("media root %s does not exist yet; it is created when an extension needs it", cfg.Admin.MediaRoot))
	}
	if cfg.Admin.PasswordScheme == "plain" || cfg.Admin.PasswordScheme == "crypt" || cfg.Admin.PasswordScheme == "md5" {
		warnings = append(warnings, fmt.Sprintf("password scheme %s is weak; prefer sha512crypt or blfcrypt", cfg.Admin.PasswordScheme))
	}
	return warnings
}
