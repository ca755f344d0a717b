package jobs

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/karatrack-backend/internal/domain"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
)

// JobRunRepo stores jobs, hands them to workers in FIFO order and fans out
// cancellation requests to whichever process is running a job.
type JobRunRepo interface {
	// Create stores a queued job and enqueues it.
	Create(ctx context.Context, job *domain.JobRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.JobRun, error)
	// UpdateUnlessStatus applies fn to the stored job unless its current
	// status is one of disallowed. It reports whether fn was applied.
	UpdateUnlessStatus(ctx context.Context, id uuid.UUID, disallowed []domain.JobStatus, fn func(*domain.JobRun)) (bool, error)
	// ClaimNext blocks up to wait for a queued job and marks it running.
	// It returns (nil, nil) when nothing was claimed.
	ClaimNext(ctx context.Context, wait time.Duration) (*domain.JobRun, error)
	// Cancel marks a job canceled and notifies subscribers. Finished jobs
	// return ErrJobFinished.
	Cancel(ctx context.Context, id uuid.UUID) (*domain.JobRun, error)
	// SubscribeCancels calls fn with the id of every job canceled from now
	// on, until ctx is done.
	SubscribeCancels(ctx context.Context, fn func(uuid.UUID)) error
	Close() error
}

// claimable guards ClaimNext: only queued jobs become running.
var claimable = []domain.JobStatus{
	domain.JobStatusRunning,
	domain.JobStatusTranscribed,
	domain.JobStatusCompleted,
	domain.JobStatusFailed,
	domain.JobStatusCanceled,
}

var finished = []domain.JobStatus{
	domain.JobStatusTranscribed,
	domain.JobStatusCompleted,
	domain.JobStatusFailed,
	domain.JobStatusCanceled,
}

func applyUnlessStatus(job *domain.JobRun, disallowed []domain.JobStatus, fn func(*domain.JobRun)) bool {
	if slices.Contains(disallowed, job.Status) {
		return false
	}
	fn(job)
	return true
}

func markRunning(j *domain.JobRun) {
	now := time.Now().UTC()
	j.Status = domain.JobStatusRunning
	j.Stage = "claimed"
	j.StartedAt = &now
	j.UpdatedAt = now
}

func markCanceled(j *domain.JobRun) {
	now := time.Now().UTC()
	j.Status = domain.JobStatusCanceled
	j.Message = ""
	j.Error = "canceled by request"
	j.FinishedAt = &now
	j.UpdatedAt = now
}
