package account

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
	"github.com/marmos91/postmaster/internal/cli/prompt"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

var roleCmd = &cobra.Command{
	Use:   "role <username> [role]",
	Short: "Change the role of an account",
	Long: `Change the role of an account to SuperAdmins, DomainAdmins or SimpleUsers.
The role is selected interactively when omitted.

Examples:
  postmaster account role alice DomainAdmins

  # Pick the role from a list
  postmaster account role alice`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRole,
}

func runRole(cmd *cobra.Command, args []string) error {
	var role models.Role
	var err error
	if len(args) == 2 {
		role, err = cmdutil.ParseRole(args[1])
	} else {
		role, err = prompt.SelectRole(fmt.Sprintf("Role for %s", args[0]))
		if prompt.IsAborted(err) {
			return cmdutil.HandleAbort(err)
		}
	}
	if err != nil {
		return err
	}

	sess, err := cmdutil.OpenSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	account, err := sess.Runtime.Accounts().SetRole(cmd.Context(), sess.Actor, args[0], role)
	if err != nil {
		return fmt.Errorf("failed to change role: %w", err)
	}

	return cmdutil.PrintResourceWithSuccess(cmd.OutOrStdout(), account, fmt.Sprintf("Account '%s' is now %s", account.Username, account.Role))
}
