package telegram

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/Conte777/reaction-service/config"
	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
)

// Module provides the Telegram platform adapter for fx DI
var Module = fx.Module("telegram",
	fx.Provide(
		NewSessionStorageProviderFx,
		NewClientFactoryFx,
		NewQRSessionStoreFx,
		NewQRLoginManagerFx,
	),
)

// NewSessionStorageProviderFx selects the session backend from config.
// The file backend creates the session directory at startup.
func NewSessionStorageProviderFx(
	cfg *config.TelegramConfig,
	db *gorm.DB,
	logger zerolog.Logger,
) (SessionStorageProvider, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres session backend requires a database connection")
		}
		logger.Info().Msg("using PostgreSQL session storage")
		return NewPostgresSessionProvider(db), nil
	default:
		if err := os.MkdirAll(cfg.SessionDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
		logger.Info().Str("dir", cfg.SessionDir).Msg("using file session storage")
		return NewFileSessionProvider(cfg.SessionDir), nil
	}
}

// NewClientFactoryFx creates the platform client factory
func NewClientFactoryFx(
	cfg *config.TelegramConfig,
	storages SessionStorageProvider,
	logger zerolog.Logger,
	m *metrics.Metrics,
) deps.ClientFactory {
	return NewClientFactory(storages, cfg.RequestTimeout, logger, m)
}

// NewQRSessionStoreFx creates the QR attempt store and stops it on shutdown
func NewQRSessionStoreFx(lc fx.Lifecycle, logger zerolog.Logger) *QRSessionStore {
	store := NewQRSessionStore(QRLoginTTL, time.Minute, QRMaxSessions, logger)

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			store.Stop()
			return nil
		},
	})

	return store
}

// NewQRLoginManagerFx creates the QR login manager
func NewQRLoginManagerFx(
	store *QRSessionStore,
	storages SessionStorageProvider,
	logger zerolog.Logger,
	m *metrics.Metrics,
) deps.QRLoginManager {
	return NewQRLoginManager(store, storages, logger, m)
}
