// Package config implements configuration file commands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for configuration management.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration file management",
	Long: `Validate the configuration file or generate its JSON schema.

Use "postmaster init" to create a configuration file.`,
}

func init() {
	Cmd.AddCommand(schemaCmd)
	Cmd.AddCommand(validateCmd)
}
