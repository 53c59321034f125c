package account

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
	"github.com/marmos91/postmaster/internal/cli/prompt"
)

var passwdPassword string

var passwdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Set an account password",
	Long: `Set the password of an account, encoded with the current password scheme.

Examples:
  postmaster account passwd bob@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runPasswd,
}

func init() {
	passwdCmd.Flags().StringVarP(&passwdPassword, "password", "p", "", "New password (prompts if not provided)")
}

func runPasswd(cmd *cobra.Command, args []string) error {
	password := passwdPassword
	if password == "" {
		var err error
		password, err = prompt.NewPassword()
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	sess, err := cmdutil.OpenSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if err := sess.Runtime.Accounts().SetPassword(cmd.Context(), sess.Actor, args[0], password); err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Password updated for '%s'", args[0]))
	return nil
}
