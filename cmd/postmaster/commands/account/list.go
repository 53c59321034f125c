package account

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
	"github.com/marmos91/postmaster/internal/cli/timeutil"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	Long: `List the accounts the acting account can access.

Examples:
  # List accounts as table
  postmaster account list

  # List as JSON
  postmaster account list -o json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

// AccountList is a list of accounts for table rendering.
type AccountList []*models.Account

// Headers implements TableRenderer.
func (al AccountList) Headers() []string {
	return []string{"USERNAME", "ROLE", "NAME", "EMAIL", "ENABLED", "LOCAL", "LAST LOGIN"}
}

// Rows implements TableRenderer.
func (al AccountList) Rows() [][]string {
	rows := make([][]string, 0, len(al))
	for _, a := range al {
		rows = append(rows, []string{
			a.Username,
			string(a.Role),
			cmdutil.EmptyOr(a.FullName(), "-"),
			cmdutil.EmptyOr(a.Email, "-"),
			cmdutil.BoolToYesNo(a.Enabled),
			cmdutil.BoolToYesNo(a.IsLocal),
			timeutil.FormatLastLogin(a.LastLogin),
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	sess, err := cmdutil.OpenSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	accounts, err := sess.Runtime.Accounts().List(cmd.Context(), sess.Actor)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	return cmdutil.PrintOutput(cmd.OutOrStdout(), accounts, len(accounts) == 0, "No accounts found.", AccountList(accounts))
}
