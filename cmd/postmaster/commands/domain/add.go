package domain

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/domains"
)

var (
	addQuota    int
	addDisabled bool
)

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a domain",
	Long: `Add a mail domain. The quota is in MB; 0 means unlimited.

Examples:
  postmaster domain add example.com
  postmaster domain add example.org --quota 5000 --disabled`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().IntVar(&addQuota, "quota", 0, "Quota in MB (0 = unlimited)")
	addCmd.Flags().BoolVar(&addDisabled, "disabled", false, "Create the domain disabled")
}

func runAdd(cmd *cobra.Command, args []string) error {
	sess, err := cmdutil.OpenSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	enabled := !addDisabled
	domain, err := sess.Runtime.Domains().Create(cmd.Context(), sess.Actor, domains.CreateRequest{
		Name:    args[0],
		Quota:   addQuota,
		Enabled: &enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to add domain: %w", err)
	}

	return cmdutil.PrintResourceWithSuccess(cmd.OutOrStdout(), domain, fmt.Sprintf("Domain '%s' added", domain.Name))
}
