package system

import (
	"go.uber.org/fx"

	systemhttp "github.com/Conte777/reaction-service/internal/domain/system/delivery/http"
	"github.com/Conte777/reaction-service/internal/infrastructure/http/server"
)

// Module provides the root and health routes for fx DI
var Module = fx.Module("system",
	fx.Provide(
		systemhttp.NewSystemHandler,
		systemhttp.NewRouter,
	),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *systemhttp.Router, srv *server.Server) {
	r.RegisterRoutes(srv.Router)
}
