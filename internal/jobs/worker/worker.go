package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/karatrack-backend/internal/data/repos"
	"github.com/yungbote/karatrack-backend/internal/domain"
	"github.com/yungbote/karatrack-backend/internal/jobs/runtime"
	"github.com/yungbote/karatrack-backend/internal/observability"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
	"github.com/yungbote/karatrack-backend/internal/services"
)

type Config struct {
	Concurrency int
	// JobTimeout bounds a single run; zero means no limit.
	JobTimeout time.Duration
	// ClaimWait is how long one claim blocks on an empty queue.
	ClaimWait time.Duration
}

type Worker struct {
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   services.JobNotifier
	cfg      Config

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify services.JobNotifier, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ClaimWait <= 0 {
		cfg.ClaimWait = 2 * time.Second
	}
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		cfg:      cfg,
		running:  map[uuid.UUID]context.CancelFunc{},
	}
}

// Start subscribes to cancellations and launches the claim loops. It returns
// once they are running; Wait blocks until ctx is done and loops exit.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.repo.SubscribeCancels(ctx, w.cancelRunning); err != nil {
		return fmt.Errorf("subscribe cancels: %w", err)
	}
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "job_timeout", w.cfg.JobTimeout.String())
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
	return nil
}

func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) cancelRunning(id uuid.UUID) {
	w.mu.Lock()
	cancel, ok := w.running[id]
	w.mu.Unlock()
	if ok {
		w.log.Info("Canceling running job", "job_id", id)
		cancel()
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		}
		job, err := w.repo.ClaimNext(ctx, w.cfg.ClaimWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Warn("ClaimNext failed", "worker_id", workerID, "error", err)
			sleepCtx(ctx, time.Second)
			continue
		}
		if job == nil {
			continue
		}
		w.runJob(ctx, workerID, job)
	}
}

func (w *Worker) runJob(parent context.Context, workerID int, job *domain.JobRun) {
	ctx, cancel := context.WithCancel(parent)
	if w.cfg.JobTimeout > 0 {
		ctx, cancel = withTimeout(ctx, cancel, w.cfg.JobTimeout)
	}
	w.mu.Lock()
	w.running[job.ID] = cancel
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.running, job.ID)
		w.mu.Unlock()
		cancel()
	}()
	// a cancel published between claim and registration is caught here
	if cur, err := w.repo.GetByID(ctx, job.ID); err == nil && cur.Status == domain.JobStatusCanceled {
		cancel()
	}

	jc := runtime.NewContext(ctx, job, w.repo, w.notify)
	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type",
			"worker_id", workerID,
			"job_type", job.JobType,
			"job_id", job.ID,
		)
		jc.Fail("dispatch", &missingHandlerError{JobType: string(job.JobType)})
		return
	}

	start := time.Now()
	w.log.Info("Job started", "worker_id", workerID, "job_id", job.ID, "job_type", job.JobType, "project_id", job.ProjectID)
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job handler panic",
				"worker_id", workerID,
				"job_id", job.ID,
				"job_type", job.JobType,
				"panic", r,
			)
			jc.Fail("panic", errFromRecover(r))
		}
		observability.Current().ObserveJob(string(job.JobType), string(jc.Job.Status), time.Since(start))
		w.log.Info("Job finished",
			"worker_id", workerID,
			"job_id", job.ID,
			"status", jc.Job.Status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}()

	if runErr := h.Run(jc); runErr != nil {
		// Most pipelines call jc.Fail themselves; this is a safety net.
		jc.Fail("run", runErr)
	}
}

func withTimeout(ctx context.Context, prev context.CancelFunc, d time.Duration) (context.Context, context.CancelFunc) {
	tctx, tcancel := context.WithTimeout(ctx, d)
	return tctx, func() {
		tcancel()
		prev()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
