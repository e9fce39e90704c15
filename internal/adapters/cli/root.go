// Package cli is the interactive and one-shot command line for podcast-qa.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/podcast-qa/internal/core/ports"
)

// Engine is what the commands need from the pipeline.
type Engine interface {
	ports.QuestionAnswerer
	ports.IndexManager
	Close() error
}

// EngineFactory builds the engine lazily so that help and flag errors never
// touch configuration or external services.
type EngineFactory func(ctx context.Context) (Engine, error)

type Options struct {
	In    io.Reader
	Title string
}

type app struct {
	open  EngineFactory
	in    io.Reader
	title string
}

func NewRootCommand(open EngineFactory, opts Options) *cobra.Command {
	a := &app{open: open, in: opts.In, title: opts.Title}
	if a.in == nil {
		a.in = os.Stdin
	}
	if a.title == "" {
		a.title = "Podcast Q&A"
	}

	root := &cobra.Command{
		Use:           "podcast-qa",
		Short:         "Ask questions about podcast episodes",
		Long:          "Answers questions from a folder of podcast transcripts and cites the episodes it used.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          a.runChat,
	}
	root.AddCommand(a.chatCommand(), a.askCommand(), a.indexCommand())
	return root
}

// withEngine opens the engine, ensures an index is live and runs fn.
func (a *app) withEngine(cmd *cobra.Command, force bool, fn func(Engine) error) error {
	engine, err := a.open(cmd.Context())
	if err != nil {
		return err
	}
	defer engine.Close()

	r := newRenderer(cmd.OutOrStdout())
	r.status("Loading podcast transcripts...")
	manifest, err := engine.Rebuild(cmd.Context(), force)
	if err != nil {
		return err
	}
	r.indexSummary(manifest)
	return fn(engine)
}
