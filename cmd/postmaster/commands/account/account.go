// Package account implements account management commands.
package account

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for account management.
var Cmd = &cobra.Command{
	Use:   "account",
	Short: "Account management",
	Long: `Manage administrator and user accounts.

Commands run directly against the configured database and are checked
against the permissions of the --as account (the configured admin by default).

Examples:
  # List accounts
  postmaster account list

  # Create a domain administrator
  postmaster account add alice@example.com --role DomainAdmins

  # Reset a password
  postmaster account passwd alice@example.com

  # Delete an account
  postmaster account delete alice@example.com`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(passwdCmd)
	Cmd.AddCommand(roleCmd)
}
