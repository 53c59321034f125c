package account

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
	"github.com/marmos91/postmaster/internal/cli/prompt"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/accounts"
)

var (
	addPassword  string
	addFirstName string
	addLastName  string
	addEmail     string
	addRole      string
	addDisabled  bool
	addMustReset bool
)

var addCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an account",
	Long: `Create an account. The password is prompted for when --password is
not given.

Examples:
  # Create a simple user, prompting for the password
  postmaster account add bob@example.com

  # Create a domain administrator
  postmaster account add alice --role DomainAdmins --password 's3cret!pw'`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addPassword, "password", "p", "", "Password (prompts if not provided)")
	addCmd.Flags().StringVar(&addFirstName, "first-name", "", "First name")
	addCmd.Flags().StringVar(&addLastName, "last-name", "", "Last name")
	addCmd.Flags().StringVar(&addEmail, "email", "", "Contact email address")
	addCmd.Flags().StringVar(&addRole, "role", "SimpleUsers", "Role (SuperAdmins|DomainAdmins|SimpleUsers)")
	addCmd.Flags().BoolVar(&addDisabled, "disabled", false, "Create the account disabled")
	addCmd.Flags().BoolVar(&addMustReset, "must-change-password", false, "Require a password change at first login")
}

func runAdd(cmd *cobra.Command, args []string) error {
	role, err := cmdutil.ParseRole(addRole)
	if err != nil {
		return err
	}

	password := addPassword
	if password == "" {
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

	enabled := !addDisabled
	account, err := sess.Runtime.Accounts().Create(cmd.Context(), sess.Actor, accounts.CreateRequest{
		Username:           args[0],
		Password:           password,
		FirstName:          addFirstName,
		LastName:           addLastName,
		Email:              addEmail,
		Role:               role,
		Enabled:            &enabled,
		MustChangePassword: addMustReset,
	})
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return cmdutil.PrintResourceWithSuccess(cmd.OutOrStdout(), account, fmt.Sprintf("Account '%s' created (%s)", account.Username, account.Role))
}
