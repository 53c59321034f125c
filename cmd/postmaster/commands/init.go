package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
	"github.com/marmos91/postmaster/pkg/config"
	"github.com/marmos91/postmaster/pkg/controlplane/api"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/accounts"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample postmaster configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/postmaster/config.yaml
next to the SQLite database. Use --config to specify a custom path.

Examples:
  # Initialize with default location
  postmaster init

  # Initialize with custom path
  postmaster init --config /etc/postmaster/config.yaml

  # Force overwrite existing config
  postmaster init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := cmdutil.Flags.ConfigFile

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit the configuration file to customize your setup")
	_, _ = fmt.Fprintln(out, "  2. Start the server with: postmaster start")
	_, _ = fmt.Fprintf(out, "  3. Or specify custom config: postmaster start --config %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nSecurity notes:")
	_, _ = fmt.Fprintln(out, "  A random JWT secret has been generated. For production, prefer:")
	_, _ = fmt.Fprintf(out, "    export %s=$(openssl rand -hex 32)\n", api.EnvControlPlaneSecret)
	_, _ = fmt.Fprintf(out, "  Set %s before the first start to choose the admin password.\n", accounts.EnvAdminInitialPassword)

	return nil
}
