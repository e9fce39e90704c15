package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) askCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return a.withEngine(cmd, false, func(engine Engine) error {
				answer, err := engine.Answer(cmd.Context(), question)
				if err != nil {
					return err
				}
				newRenderer(cmd.OutOrStdout()).answer(answer)
				return nil
			})
		},
	}
}
