package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/kirillkom/podcast-qa/internal/bootstrap"
	"github.com/kirillkom/podcast-qa/internal/config"
	"github.com/kirillkom/podcast-qa/internal/observability/logging"
)

func main() {
	force := flag.Bool("force", false, "rebuild even when the persisted index is current")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config_invalid")
	}
	logging.New("indexer", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, *force))
}

func run(ctx context.Context, cfg config.Config, force bool) int {
	app, err := bootstrap.New(ctx, cfg, "indexer")
	if err != nil {
		log.Error().Err(err).Msg("bootstrap_failed")
		return 1
	}
	defer app.Close()

	manifest, err := app.Engine.Rebuild(ctx, force)
	if err != nil {
		log.Error().Err(err).Msg("index_build_failed")
		return 1
	}
	log.Info().
		Str("build_id", manifest.BuildID).
		Str("location", manifest.Location).
		Int("chunks", manifest.ChunkCount).
		Int("sources", len(manifest.Sources)).
		Msg("indexer_done")
	return 0
}
