package app

import (
	apphttp "github.com/yungbote/karatrack-backend/internal/http"
	"github.com/yungbote/karatrack-backend/internal/observability"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *apphttp.Server {
	rc := apphttp.RouterConfig{
		Log:            log,
		CORSOrigins:    cfg.CORSOrigins,
		AuthMiddleware: middleware.Auth,
		JobHandler:     handlers.Job,
		HealthHandler:  handlers.Health,
	}
	if cfg.Otel.Enabled {
		rc.ServiceName = cfg.Otel.ServiceName
	}
	if cfg.MetricsEnabled {
		rc.Metrics = observability.Current()
	}
	return apphttp.NewServer(rc)
}
