package extension

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
	"github.com/marmos91/postmaster/pkg/extensions"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List extensions",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// InfoList is a list of extensions for table rendering.
type InfoList []extensions.Info

// Headers implements TableRenderer.
func (il InfoList) Headers() []string {
	return []string{"NAME", "LABEL", "VERSION", "ENABLED", "DESCRIPTION"}
}

// Rows implements TableRenderer.
func (il InfoList) Rows() [][]string {
	rows := make([][]string, 0, len(il))
	for _, e := range il {
		rows = append(rows, []string{e.Name, e.Label, e.Version, cmdutil.BoolToYesNo(e.Enabled), e.Description})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	sess, err := cmdutil.OpenSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	infos, err := sess.Runtime.Extensions().List(cmd.Context(), sess.Actor)
	if err != nil {
		return fmt.Errorf("failed to list extensions: %w", err)
	}

	return cmdutil.PrintOutput(cmd.OutOrStdout(), infos, len(infos) == 0, "No extensions registered.", InfoList(infos))
}
