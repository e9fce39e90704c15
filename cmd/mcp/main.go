package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	mcpadapter "github.com/kirillkom/podcast-qa/internal/adapters/mcp"
	"github.com/kirillkom/podcast-qa/internal/bootstrap"
	"github.com/kirillkom/podcast-qa/internal/config"
	"github.com/kirillkom/podcast-qa/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config_invalid")
	}
	// stdout carries the protocol; logging.New writes to stderr.
	logging.New("mcp", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "mcp")
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap_failed")
	}
	defer app.Close()

	if _, err := app.Engine.Rebuild(ctx, false); err != nil {
		log.Error().Err(err).Msg("initial_index_unavailable")
	}

	server, err := mcpadapter.NewServer(app.Engine)
	if err != nil {
		log.Fatal().Err(err).Msg("mcp_init_failed")
	}
	log.Info().Msg("mcp_serving_stdio")
	if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("mcp_server_failed")
	}
}
