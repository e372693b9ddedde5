package infrastructure

import (
	"go.uber.org/fx"

	"github.com/Conte777/reaction-service/internal/infrastructure/database"
	httpfx "github.com/Conte777/reaction-service/internal/infrastructure/http"
	"github.com/Conte777/reaction-service/internal/infrastructure/kafka"
	"github.com/Conte777/reaction-service/internal/infrastructure/logger"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
	"github.com/Conte777/reaction-service/internal/infrastructure/store"
	"github.com/Conte777/reaction-service/internal/infrastructure/telegram"
)

// Module aggregates all infrastructure modules
var Module = fx.Module("infrastructure",
	logger.Module,
	metrics.Module,
	database.Module, // Must be before telegram (telegram depends on *gorm.DB)
	store.Module,
	telegram.Module,
	kafka.Module,
	httpfx.Module,
)
