package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Conte777/reaction-service/config"
	"github.com/Conte777/reaction-service/internal/app"
)

func main() {
	fx.New(
		app.CreateApp(),
		fx.StopTimeout(30*time.Second),
		fx.Invoke(run),
	).Run()
}

func run(
	lc fx.Lifecycle,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info().
				Str("service", cfg.Service.Name).
				Str("port", cfg.Service.Port).
				Str("session_backend", cfg.Telegram.SessionBackend).
				Bool("events", len(cfg.Kafka.Brokers) > 0).
				Msg("Starting reaction service")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("Reaction service stopped")
			return nil
		},
	})
}
