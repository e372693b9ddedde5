package app

import (
	"go.uber.org/fx"

	"github.com/Conte777/reaction-service/config"
	"github.com/Conte777/reaction-service/internal/domain/session"
	"github.com/Conte777/reaction-service/internal/domain/system"
	"github.com/Conte777/reaction-service/internal/infrastructure"
)

// CreateApp creates the fx application options
func CreateApp() fx.Option {
	return fx.Options(
		fx.Provide(config.Out),
		infrastructure.Module,
		// Domain modules
		session.Module,
		system.Module, // Must be after session.Module (depends on the worker registry)
	)
}
