package cli

import (
	"github.com/spf13/cobra"
)

func (a *app) indexCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the transcript index, reusing it when nothing changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd, force, func(Engine) error { return nil })
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "rebuild even when the persisted index is current")
	return cmd
}
