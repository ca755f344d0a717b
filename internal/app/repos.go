package app

import (
	"fmt"

	"github.com/yungbote/karatrack-backend/internal/data/repos"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

type Repos struct {
	JobRun repos.JobRunRepo
}

const memoryQueueCapacity = 256

func wireRepos(log *logger.Logger, cfg Config) (Repos, error) {
	log.Info("Wiring repos...")
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set; jobs live in process memory")
		return Repos{JobRun: repos.NewMemoryJobRunRepo(memoryQueueCapacity)}, nil
	}
	jr, err := repos.NewRedisJobRunRepo(log, repos.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   cfg.RedisPrefix,
		TTL:      cfg.JobTTL,
	})
	if err != nil {
		return Repos{}, fmt.Errorf("init redis job repo: %w", err)
	}
	return Repos{JobRun: jr}, nil
}

func (r Repos) Close() {
	if r.JobRun != nil {
		_ = r.JobRun.Close()
	}
}
