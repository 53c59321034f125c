package domain

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a domain",
	Long:  `Delete a domain together with its aliases, domain aliases and mailboxes.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
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

	return cmdutil.RunDeleteWithConfirmation("Domain", args[0], deleteForce, func() error {
		if err := sess.Runtime.Domains().Delete(cmd.Context(), sess.Actor, args[0]); err != nil {
			return fmt.Errorf("failed to delete domain: %w", err)
		}
		return nil
	})
}
