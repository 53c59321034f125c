package extension

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
)

var enableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable an extension",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggle(cmd, args[0], true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable an extension",
	Long:  `Disable an extension. Its media directory is removed; its tables are kept.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggle(cmd, args[0], false)
	},
}

func toggle(cmd *cobra.Command, name string, enable bool) error {
	sess, err := cmdutil.OpenSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	ctx := cmd.Context()
	svc := sess.Runtime.Extensions()
	verb := "disabled"
	if enable {
		verb = "enabled"
		err = svc.Enable(ctx, sess.Actor, name)
	} else {
		err = svc.Disable(ctx, sess.Actor, name)
	}
	if err != nil {
		return fmt.Errorf("failed to toggle extension: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Extension '%s' %s", name, verb))
	return nil
}
