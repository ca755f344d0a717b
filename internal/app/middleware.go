package app

import (
	httpMW "github.com/yungbote/karatrack-backend/internal/http/middleware"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, httpMW.AuthConfig{Keys: cfg.APIKeys, JWTSecret: cfg.JWTSecretKey}),
	}
}
