package app

import (
	"context"

	"github.com/yungbote/karatrack-backend/internal/data/repos"
	httpH "github.com/yungbote/karatrack-backend/internal/http/handlers"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

type Handlers struct {
	Job    *httpH.JobHandler
	Health *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, serviceset Services, reposet Repos) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Check{}
	if rb, ok := reposet.JobRun.(repos.RedisBacked); ok {
		checks["redis"] = func(ctx context.Context) error { return rb.Redis().Ping(ctx).Err() }
	}
	return Handlers{
		Job:    httpH.NewJobHandler(serviceset.Jobs),
		Health: httpH.NewHealthHandler(checks),
	}
}
