package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/karatrack-backend/internal/domain"
)

// memoryRepo is a single-process JobRunRepo used in tests and local runs
// without Redis.
type memoryRepo struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]*domain.JobRun
	queue chan uuid.UUID
	subs  map[int]func(uuid.UUID)
	next  int
}

func NewMemoryJobRunRepo(capacity int) JobRunRepo {
	if capacity <= 0 {
		capacity = 1024
	}
	return &memoryRepo{
		jobs:  map[uuid.UUID]*domain.JobRun{},
		queue: make(chan uuid.UUID, capacity),
		subs:  map[int]func(uuid.UUID){},
	}
}

func (r *memoryRepo) Create(ctx context.Context, job *domain.JobRun) error {
	r.mu.Lock()
	r.jobs[job.ID] = job.Clone()
	r.mu.Unlock()
	select {
	case r.queue <- job.ID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *memoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.JobRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.Clone(), nil
}

func (r *memoryRepo) UpdateUnlessStatus(ctx context.Context, id uuid.UUID, disallowed []domain.JobStatus, fn func(*domain.JobRun)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return false, ErrJobNotFound
	}
	return applyUnlessStatus(j, disallowed, fn), nil
}

func (r *memoryRepo) ClaimNext(ctx context.Context, wait time.Duration) (*domain.JobRun, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case id := <-r.queue:
		r.mu.Lock()
		defer r.mu.Unlock()
		j, ok := r.jobs[id]
		if !ok || !applyUnlessStatus(j, claimable, markRunning) {
			return nil, nil
		}
		return j.Clone(), nil
	}
}

func (r *memoryRepo) Cancel(ctx context.Context, id uuid.UUID) (*domain.JobRun, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrJobNotFound
	}
	if !applyUnlessStatus(j, finished, markCanceled) {
		out := j.Clone()
		r.mu.Unlock()
		return out, ErrJobFinished
	}
	out := j.Clone()
	subs := make([]func(uuid.UUID), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(id)
	}
	return out, nil
}

func (r *memoryRepo) SubscribeCancels(ctx context.Context, fn func(uuid.UUID)) error {
	r.mu.Lock()
	key := r.next
	r.next++
	r.subs[key] = fn
	r.mu.Unlock()
	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subs, key)
		r.mu.Unlock()
	}()
	return nil
}

func (r *memoryRepo) Close() error { return nil }
