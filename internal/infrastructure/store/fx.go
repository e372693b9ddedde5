package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Conte777/reaction-service/config"
	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
)

// Module provides the control-state store for fx DI
var Module = fx.Module("store",
	fx.Provide(NewFileStoreFx),
)

// NewFileStoreFx creates the file store and closes it on shutdown
func NewFileStoreFx(
	lc fx.Lifecycle,
	cfg *config.StoreConfig,
	logger zerolog.Logger,
	m *metrics.Metrics,
) (deps.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := NewFileStore(cfg.Path, logger, m)

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			s.Close()
			return nil
		},
	})

	return s, nil
}
