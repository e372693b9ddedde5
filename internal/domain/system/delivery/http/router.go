package http

import (
	"github.com/fasthttp/router"
)

// Router registers the root and health routes
type Router struct {
	handler *SystemHandler
}

// NewRouter creates a new system router
func NewRouter(handler *SystemHandler) *Router {
	return &Router{handler: handler}
}

// RegisterRoutes registers system routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	rt.GET("/", r.handler.Root)
	rt.GET("/health", r.handler.Health)
}
