package cli

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"
)

const maxQuestionBytes = 64 << 10

var exitCommands = map[string]struct{}{
	"exit": {},
	"quit": {},
	"bye":  {},
}

func (a *app) chatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive question session",
		Args:  cobra.NoArgs,
		RunE:  a.runChat,
	}
}

func (a *app) runChat(cmd *cobra.Command, _ []string) error {
	return a.withEngine(cmd, false, func(engine Engine) error {
		r := newRenderer(cmd.OutOrStdout())
		r.banner(a.title)

		scanner := bufio.NewScanner(a.in)
		scanner.Buffer(make([]byte, 0, 4096), maxQuestionBytes)
		for {
			r.prompt()
			if !scanner.Scan() {
				r.goodbye()
				return scanner.Err()
			}

			question := strings.TrimSpace(scanner.Text())
			if _, ok := exitCommands[strings.ToLower(question)]; ok {
				r.goodbye()
				return nil
			}
			if question == "" {
				continue
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			r.status("Searching through episodes...")
			answer, err := engine.Answer(cmd.Context(), question)
			if err != nil {
				r.failure(err)
				continue
			}
			r.answer(answer)
		}
	})
}
