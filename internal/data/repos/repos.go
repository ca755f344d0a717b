package repos

import (
	"github.com/yungbote/karatrack-backend/internal/data/repos/jobs"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

type JobRunRepo = jobs.JobRunRepo
type RedisConfig = jobs.RedisConfig
type RedisBacked = jobs.RedisBacked

var (
	ErrJobNotFound = jobs.ErrJobNotFound
	ErrJobFinished = jobs.ErrJobFinished
)

func NewRedisJobRunRepo(log *logger.Logger, cfg RedisConfig) (JobRunRepo, error) {
	return jobs.NewRedisJobRunRepo(log, cfg)
}

func NewMemoryJobRunRepo(capacity int) JobRunRepo { return jobs.NewMemoryJobRunRepo(capacity) }
