// Package extension implements extension management commands.
package extension

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for extension management.
var Cmd = &cobra.Command{
	Use:     "extension",
	Aliases: []string{"ext"},
	Short:   "Extension management",
	Long: `List, enable and disable the extensions built into postmaster.

Enabling runs the extension's setup in this process and stores the enabled
flag in the database. A running server picks the change up on its next
start; use the REST API to toggle extensions live.

Examples:
  postmaster extension list
  postmaster extension enable postfix_autoreply
  postmaster extension disable postfix_autoreply`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(enableCmd)
	Cmd.AddCommand(disableCmd)
}
