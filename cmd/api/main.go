package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	httpadapter "github.com/kirillkom/podcast-qa/internal/adapters/http"
	"github.com/kirillkom/podcast-qa/internal/bootstrap"
	"github.com/kirillkom/podcast-qa/internal/config"
	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config_invalid")
	}
	logging.New("api", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "api")
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap_failed")
	}
	defer app.Close()

	// The API still starts without an index; /v1/answer reports 503 until a
	// rebuild notification or a reload brings one in.
	if _, err := app.Engine.Rebuild(ctx, false); err != nil {
		log.Error().Err(err).Msg("initial_index_unavailable")
	}

	if app.Notifications != nil {
		go func() {
			err := app.Notifications.SubscribeIndexRebuilt(ctx, func(handlerCtx context.Context, event domain.IndexRebuilt) error {
				log.Info().Str("build_id", event.BuildID).Msg("index_rebuilt_received")
				return app.Engine.Reload(handlerCtx)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("rebuild_subscription_failed")
			}
		}()
	}

	router := httpadapter.NewRouter(app.Engine, app.Engine, app.Metrics, httpadapter.Options{
		RateLimitRPS:     cfg.APIRateLimitRPS,
		RateLimitBurst:   cfg.APIRateLimitBurst,
		MaxInFlight:      cfg.APIBackpressureMax,
		BackpressureWait: cfg.APIBackpressureWait,
		RequestTimeout:   cfg.APIRequestTimeout,
	}).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.APIRequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("api_listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("api_server_failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.APIShutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api_shutdown_failed")
	}
}
