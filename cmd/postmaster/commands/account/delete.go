package account

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete an account",
	Long: `Delete an account. Objects it owned are handed over to its owner,
or to the acting account when it has none. Its mailboxes are deleted.

Examples:
  # Delete with confirmation
  postmaster account delete bob@example.com

  # Delete without confirmation
  postmaster account delete bob@example.com --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	sess, err := cmdutil.OpenSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	return cmdutil.RunDeleteWithConfirmation("Account", args[0], deleteForce, func() error {
		if err := sess.Runtime.Accounts().Delete(cmd.Context(), sess.Actor, args[0]); err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}
		return nil
	})
}
