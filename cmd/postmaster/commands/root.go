// Package commands implements the postmaster CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
	"github.com/marmos91/postmaster/cmd/postmaster/commands/account"
	configcmd "github.com/marmos91/postmaster/cmd/postmaster/commands/config"
	"github.com/marmos91/postmaster/cmd/postmaster/commands/domain"
	"github.com/marmos91/postmaster/cmd/postmaster/commands/extension"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "postmaster",
	Short: "Postmaster - mail hosting administration",
	Long: `Postmaster administers the accounts, domains, mailboxes and aliases of a
mail hosting platform. It serves a REST API and manages the same database
directly from the command line.

Use "postmaster [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cmdutil.Flags.ConfigFile, "config", "", "config file (default: $XDG_CONFIG_HOME/postmaster/config.yaml)")
	pf.StringVarP(&cmdutil.Flags.Output, "output", "o", "table", "Output format (table|json|yaml)")
	pf.BoolVar(&cmdutil.Flags.NoColor, "no-color", false, "Disable colored output")
	pf.StringVar(&cmdutil.Flags.As, "as", "", "Account to act as (default: the configured admin username)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(configcmd.Cmd)
	rootCmd.AddCommand(account.Cmd)
	rootCmd.AddCommand(domain.Cmd)
	rootCmd.AddCommand(extension.Cmd)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}
