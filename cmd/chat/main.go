package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/podcast-qa/internal/adapters/cli"
	"github.com/kirillkom/podcast-qa/internal/bootstrap"
	"github.com/kirillkom/podcast-qa/internal/config"
	"github.com/kirillkom/podcast-qa/internal/observability/logging"
)

// appEngine closes the whole application together with its engine.
type appEngine struct {
	cli.Engine
	app *bootstrap.App
}

func (e appEngine) Close() error { return e.app.Close() }

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	open := func(ctx context.Context) (cli.Engine, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		logging.New("chat", cfg.LogLevel, "console")

		app, err := bootstrap.New(ctx, cfg, "chat")
		if err != nil {
			return nil, err
		}
		return appEngine{Engine: app.Engine, app: app}, nil
	}
	root := cli.NewRootCommand(open, cli.Options{In: os.Stdin})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
