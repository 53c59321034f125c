package domain

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List domains",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// DomainList is a list of domains for table rendering.
type DomainList []*models.Domain

// Headers implements TableRenderer.
func (dl DomainList) Headers() []string {
	return []string{"NAME", "QUOTA", "ENABLED", "CREATED"}
}

// Rows implements TableRenderer.
func (dl DomainList) Rows() [][]string {
	rows := make([][]string, 0, len(dl))
	for _, d := range dl {
		rows = append(rows, []string{
			d.Name,
			formatQuota(d.Quota),
			cmdutil.BoolToYesNo(d.Enabled),
			d.CreatedAt.Format("2006-01-02"),
		})
	}
	return rows
}

func formatQuota(mb int) string {
	if mb == 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d MB", mb)
}

func runList(cmd *cobra.Command, args []string) error {
	sess, err := cmdutil.OpenSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	domains, err := sess.Runtime.Domains().List(cmd.Context(), sess.Actor)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}

	return cmdutil.PrintOutput(cmd.OutOrStdout(), domains, len(domains) == 0, "No domains found.", DomainList(domains))
}
