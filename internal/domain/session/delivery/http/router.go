package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"

	"github.com/Conte777/reaction-service/pkg/httputil"
)

// Router registers the /Start routes
type Router struct {
	handler *SessionHandler
	logger  zerolog.Logger
}

// NewRouter creates a new session router
func NewRouter(handler *SessionHandler, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		logger:  logger,
	}
}

// RegisterRoutes registers session routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	start := httputil.NewMiddlewareGroup(rt.Group("/Start")).
		Use(httputil.Recover(r.logger), httputil.RequestLogger(r.logger))

	// Login
	start.GET("/login/{apiId}/{apiHash}/{phone}", r.handler.Login)
	start.GET("/verify/{code}/{otp}", r.handler.Verify)
	start.GET("/password/{code}/{password}", r.handler.Password)
	start.GET("/qr/status/{code}", r.handler.QRStatus)
	start.GET("/qr/{apiId}/{apiHash}", r.handler.StartQR)

	// Workers
	start.GET("/bot/{auth}/{groupId}/{emoji}", r.handler.StartBot)
	start.GET("/stop/{auth}", r.handler.StopBot)
	start.GET("/status/{auth}", r.handler.Status)
	start.GET("/list", r.handler.List)

	r.logger.Info().Msg("Session routes registered")
}
