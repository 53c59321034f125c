// Package domain implements mail domain management commands.
package domain

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for domain management.
var Cmd = &cobra.Command{
	Use:   "domain",
	Short: "Domain management",
	Long: `Manage the mail domains hosted by the platform.

Examples:
  # List domains
  postmaster domain list

  # Add a domain with a 10 GB quota
  postmaster domain add example.com --quota 10240

  # Delete a domain and everything in it
  postmaster domain delete example.com

  # Let a DomainAdmins account manage a domain
  postmaster domain admin add example.com alice`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(adminCmd)
}
