package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Conte777/reaction-service/config"
	sessionhttp "github.com/Conte777/reaction-service/internal/domain/session/delivery/http"
	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/domain/session/usecase/business"
	"github.com/Conte777/reaction-service/internal/domain/session/worker"
	"github.com/Conte777/reaction-service/internal/infrastructure/http/server"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
)

// Module provides the session domain for fx DI
var Module = fx.Module("session",
	fx.Provide(
		worker.NewRegistry,
		NewUseCaseFx,
		func(uc *business.UseCase) deps.SessionService { return uc },
		sessionhttp.NewSessionHandler,
		sessionhttp.NewRouter,
	),
	fx.Invoke(registerRoutes),
	fx.Invoke(registerLifecycle),
)

// NewUseCaseFx creates the session use case from config
func NewUseCaseFx(
	store deps.Store,
	clients deps.ClientFactory,
	qr deps.QRLoginManager,
	events deps.EventPublisher,
	registry *worker.Registry,
	telegramCfg *config.TelegramConfig,
	storeCfg *config.StoreConfig,
	workerCfg *config.WorkerConfig,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *business.UseCase {
	return business.NewUseCase(store, clients, qr, events, registry, business.Options{
		WorkerAPIID:       telegramCfg.APIID,
		WorkerAPIHash:     telegramCfg.APIHash,
		PendingSessionTTL: storeCfg.PendingSessionTTL,
		Worker: worker.Config{
			StartTimeout:  workerCfg.StartTimeout,
			StopTimeout:   workerCfg.StopTimeout,
			ReactionRate:  workerCfg.ReactionRate,
			ReactionBurst: workerCfg.ReactionBurst,
		},
	}, logger, m)
}

func registerRoutes(r *sessionhttp.Router, srv *server.Server) {
	r.RegisterRoutes(srv.Router)
}

// registerLifecycle runs the login code janitor and stops every worker on shutdown
func registerLifecycle(lc fx.Lifecycle, uc *business.UseCase, storeCfg *config.StoreConfig, logger zerolog.Logger) {
	logger = logger.With().Str("component", "session_lifecycle").Logger()
	janitorCtx, cancel := context.WithCancel(context.Background())
	janitorDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if storeCfg.PendingSessionTTL <= 0 {
				close(janitorDone)
				return nil
			}

			go func() {
				defer close(janitorDone)
				runJanitor(janitorCtx, uc, storeCfg.CleanupInterval, logger)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			<-janitorDone

			stopped := uc.Shutdown(ctx)
			logger.Info().Int("workers", stopped).Msg("Workers stopped")
			return nil
		},
	})
}

// runJanitor purges expired login codes every interval until ctx ends
func runJanitor(ctx context.Context, uc *business.UseCase, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := uc.PurgeExpired(ctx, now); err != nil && ctx.Err() == nil {
				logger.Warn().Err(err).Msg("Failed to purge expired login codes")
			}
		}
	}
}
