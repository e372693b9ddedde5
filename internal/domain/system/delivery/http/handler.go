package http

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	"github.com/Conte777/reaction-service/internal/domain/session/worker"
	"github.com/Conte777/reaction-service/pkg/httputil"
)

const healthCheckTimeout = 2 * time.Second

// HealthResponse reports the state of the service components
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Workers    int               `json:"workers"`
}

// SystemHandler serves the root and health routes
type SystemHandler struct {
	store    deps.Store
	registry *worker.Registry
	logger   zerolog.Logger
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(store deps.Store, registry *worker.Registry, logger zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		store:    store,
		registry: registry,
		logger:   logger.With().Str("handler", "system").Logger(),
	}
}

// Root handles GET /
func (h *SystemHandler) Root(ctx *fasthttp.RequestCtx) {
	httputil.WriteResponse(ctx, map[string]string{"status": "running 🔥"})
}

// Health handles GET /health
func (h *SystemHandler) Health(ctx *fasthttp.RequestCtx) {
	checkCtx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     "healthy",
		Components: map[string]string{"store": "ok"},
		Workers:    h.registry.Len(),
	}

	err := h.store.View(checkCtx, func(_ *entities.Document) error { return nil })
	if err != nil {
		h.logger.Warn().Err(err).Msg("Store health check failed")
		resp.Status = "unhealthy"
		resp.Components["store"] = err.Error()
	}

	httputil.WriteHealthResponse(ctx, resp, err == nil)
}
