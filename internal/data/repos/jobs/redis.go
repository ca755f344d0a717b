package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/karatrack-backend/internal/domain"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key and channel.
	Prefix string
	// TTL bounds how long job records outlive their last update.
	TTL time.Duration
}

type redisRepo struct {
	log *logger.Logger
	rdb *goredis.Client
	cfg RedisConfig
}

const maxWatchRetries = 8

func NewRedisJobRunRepo(log *logger.Logger, cfg RedisConfig) (JobRunRepo, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "karatrack"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisRepo{log: log.With("repo", "RedisJobRunRepo"), rdb: rdb, cfg: cfg}, nil
}

func (r *redisRepo) jobKey(id uuid.UUID) string { return r.cfg.Prefix + ":job:" + id.String() }
func (r *redisRepo) queueKey() string          { return r.cfg.Prefix + ":queue" }
func (r *redisRepo) cancelChannel() string     { return r.cfg.Prefix + ":cancel" }

func (r *redisRepo) Create(ctx context.Context, job *domain.JobRun) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	_, err = r.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, r.jobKey(job.ID), raw, r.cfg.TTL)
		p.LPush(ctx, r.queueKey(), job.ID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (r *redisRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.JobRun, error) {
	raw, err := r.rdb.Get(ctx, r.jobKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return decodeJob(raw)
}

func decodeJob(raw []byte) (*domain.JobRun, error) {
	var j domain.JobRun
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &j, nil
}

// UpdateUnlessStatus is an optimistic read-modify-write under WATCH.
func (r *redisRepo) UpdateUnlessStatus(ctx context.Context, id uuid.UUID, disallowed []domain.JobStatus, fn func(*domain.JobRun)) (bool, error) {
	ok, _, err := r.update(ctx, id, disallowed, fn)
	return ok, err
}

func (r *redisRepo) update(ctx context.Context, id uuid.UUID, disallowed []domain.JobStatus, fn func(*domain.JobRun)) (bool, *domain.JobRun, error) {
	key := r.jobKey(id)
	var (
		applied bool
		out     *domain.JobRun
	)
	txf := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return ErrJobNotFound
		}
		if err != nil {
			return err
		}
		j, err := decodeJob(raw)
		if err != nil {
			return err
		}
		out = j
		applied = applyUnlessStatus(j, disallowed, fn)
		if !applied {
			return nil
		}
		next, err := json.Marshal(j)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, key, next, r.cfg.TTL)
			return nil
		})
		return err
	}
	for i := 0; i < maxWatchRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, out, err
		}
		return applied, out, nil
	}
	return false, out, fmt.Errorf("update job %s: too much contention", id)
}

func (r *redisRepo) ClaimNext(ctx context.Context, wait time.Duration) (*domain.JobRun, error) {
	res, err := r.rdb.BRPop(ctx, wait, r.queueKey()).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("claim: %w", err)
	}
	// BRPOP returns [key, value]
	if len(res) != 2 {
		return nil, nil
	}
	id, err := uuid.Parse(res[1])
	if err != nil {
		r.log.Warn("dropping malformed queue entry", "value", res[1])
		return nil, nil
	}
	ok, job, err := r.update(ctx, id, claimable, markRunning)
	if errors.Is(err, ErrJobNotFound) {
		r.log.Warn("queued job expired before claim", "job_id", id)
		return nil, nil
	}
	if err != nil || !ok {
		return nil, err
	}
	return job, nil
}

func (r *redisRepo) Cancel(ctx context.Context, id uuid.UUID) (*domain.JobRun, error) {
	ok, job, err := r.update(ctx, id, finished, markCanceled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return job, ErrJobFinished
	}
	if err := r.rdb.Publish(ctx, r.cancelChannel(), id.String()).Err(); err != nil {
		return job, fmt.Errorf("publish cancel: %w", err)
	}
	return job, nil
}

func (r *redisRepo) SubscribeCancels(ctx context.Context, fn func(uuid.UUID)) error {
	if fn == nil {
		return fmt.Errorf("callback required")
	}
	sub := r.rdb.Subscribe(ctx, r.cancelChannel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				id, err := uuid.Parse(m.Payload)
				if err != nil {
					r.log.Warn("bad cancel payload", "payload", m.Payload)
					continue
				}
				fn(id)
			}
		}
	}()
	return nil
}

func (r *redisRepo) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

// RedisBacked is implemented by repos that hold a Redis connection.
type RedisBacked interface {
	Redis() goredis.UniversalClient
}

func (r *redisRepo) Redis() goredis.UniversalClient { return r.rdb }
