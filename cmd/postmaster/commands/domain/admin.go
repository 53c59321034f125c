package domain

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage the DomainAdmins of a domain",
	Long: `Grant or revoke a DomainAdmins account's access to a domain.
Only superusers may change grants.`,
}

var adminAddCmd = &cobra.Command{
	Use:   "add <domain> <username>",
	Short: "Give a DomainAdmins account access to a domain",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdminAdd,
}

var adminRemoveCmd = &cobra.Command{
	Use:   "remove <domain> <username>",
	Short: "Revoke a DomainAdmins account's access to a domain",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdminRemove,
}

var adminListCmd = &cobra.Command{
	Use:   "list <domain>",
	Short: "List the accounts with access to a domain",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminList,
}

func init() {
	adminCmd.AddCommand(adminAddCmd)
	adminCmd.AddCommand(adminRemoveCmd)
	adminCmd.AddCommand(adminListCmd)
}

// GrantList is a list of domain grants for table rendering.
type GrantList []GrantRow

// GrantRow is one account with access to a domain.
type GrantRow struct {
	Username string `json:"username"`
	Owner    bool   `json:"owner"`
}

// Headers implements TableRenderer.
func (gl GrantList) Headers() []string {
	return []string{"ACCOUNT", "OWNER"}
}

// Rows implements TableRenderer.
func (gl GrantList) Rows() [][]string {
	rows := make([][]string, 0, len(gl))
	for _, g := range gl {
		rows = append(rows, []string{g.Username, cmdutil.BoolToYesNo(g.Owner)})
	}
	return rows
}

func runAdminAdd(cmd *cobra.Command, args []string) error {
	sess, err := cmdutil.OpenSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	d, err := sess.Runtime.Domains().Get(cmd.Context(), sess.Actor, args[0])
	if err != nil {
		return err
	}
	if err := sess.Runtime.Settings().Grant(cmd.Context(), sess.Actor, args[1], d.ObjectRef()); err != nil {
		return fmt.Errorf("failed to grant access: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Account '%s' can now manage '%s'", args[1], d.Name))
	return nil
}

func runAdminRemove(cmd *cobra.Command, args []string) error {
	sess, err := cmdutil.OpenSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	d, err := sess.Runtime.Domains().Get(cmd.Context(), sess.Actor, args[0])
	if err != nil {
		return err
	}
	if err := sess.Runtime.Settings().Revoke(cmd.Context(), sess.Actor, args[1], d.ObjectRef()); err != nil {
		return fmt.Errorf("failed to revoke access: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Account '%s' no longer manages '%s'", args[1], d.Name))
	return nil
}

func runAdminList(cmd *cobra.Command, args []string) error {
	sess, err := cmdutil.OpenSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	ctx := cmd.Context()
	d, err := sess.Runtime.Domains().Get(ctx, sess.Actor, args[0])
	if err != nil {
		return err
	}
	grants, err := sess.Runtime.Settings().Grants(ctx, sess.Actor, d.ObjectRef())
	if err != nil {
		return fmt.Errorf("failed to list grants: %w", err)
	}

	list := make(GrantList, 0, len(grants))
	for _, g := range grants {
		account, err := sess.Store.GetAccountByID(ctx, g.AccountID)
		if err != nil {
			return err
		}
		list = append(list, GrantRow{Username: account.Username, Owner: g.IsOwner})
	}

	return cmdutil.PrintOutput(cmd.OutOrStdout(), list, len(list) == 0, "No grants found.", list)
}
