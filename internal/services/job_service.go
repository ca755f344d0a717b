package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/karatrack-backend/internal/data/repos"
	"github.com/yungbote/karatrack-backend/internal/domain"
	"github.com/yungbote/karatrack-backend/internal/platform/apierr"
	"github.com/yungbote/karatrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/karatrack-backend/internal/platform/gcp"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
	"github.com/yungbote/karatrack-backend/internal/render"
)

// JobService is the submission side of the job system: it validates
// requests up front so bad input is a 400 instead of a failed job.
type JobService interface {
	Submit(ctx context.Context, jobType domain.JobType, body []byte) (*domain.JobRun, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.JobRun, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.JobRun, error)
	// PurgeArtifacts deletes everything published for a project and returns
	// the number of removed objects.
	PurgeArtifacts(ctx context.Context, projectID string) (int, error)
}

type jobService struct {
	log     *logger.Logger
	repo    repos.JobRunRepo
	notify  JobNotifier
	bucket  gcp.BucketService
	presets render.StylePresets
}

func NewJobService(baseLog *logger.Logger, repo repos.JobRunRepo, notify JobNotifier, bucket gcp.BucketService, presets render.StylePresets) JobService {
	return &jobService{
		log:     baseLog.With("service", "JobService"),
		repo:    repo,
		notify:  notify,
		bucket:  bucket,
		presets: presets,
	}
}

func (s *jobService) Submit(ctx context.Context, jobType domain.JobType, body []byte) (*domain.JobRun, error) {
	if !jobType.Valid() {
		return nil, apierr.New(http.StatusBadRequest, "invalid_job_type", fmt.Errorf("unknown job_type %q", jobType))
	}
	var (
		projectID, callbackURL string
		normalized             any
	)
	switch jobType {
	case domain.JobTypeKaraokeBuild:
		var req domain.BuildRequest
		if err := decodeStrict(body, &req); err != nil {
			return nil, err
		}
		if err := req.Normalize(s.presets); err != nil {
			return nil, inputError(err)
		}
		projectID, callbackURL, normalized = req.ProjectID, req.CallbackURL, req
	case domain.JobTypeKaraokeRender:
		var req domain.RenderRequest
		if err := decodeStrict(body, &req); err != nil {
			return nil, err
		}
		if err := req.Normalize(s.presets); err != nil {
			return nil, inputError(err)
		}
		projectID, callbackURL, normalized = req.ProjectID, req.CallbackURL, req
	case domain.JobTypeLyricsTranscribe:
		var req domain.TranscribeRequest
		if err := decodeStrict(body, &req); err != nil {
			return nil, err
		}
		if err := req.Normalize(); err != nil {
			return nil, inputError(err)
		}
		projectID, callbackURL, normalized = req.ProjectID, req.CallbackURL, req
	}
	payload, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	now := time.Now().UTC()
	job := &domain.JobRun{
		ID:          uuid.New(),
		ProjectID:   projectID,
		JobType:     jobType,
		Status:      domain.JobStatusQueued,
		Stage:       "queued",
		CallbackURL: callbackURL,
		Payload:     payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		job.TraceID = td.TraceID
		job.RequestID = td.RequestID
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	s.log.Info("Job enqueued", "job_id", job.ID, "job_type", jobType, "project_id", projectID)
	return job, nil
}

func (s *jobService) Get(ctx context.Context, id uuid.UUID) (*domain.JobRun, error) {
	job, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repos.ErrJobNotFound) {
		return nil, apierr.New(http.StatusNotFound, "job_not_found", err)
	}
	return job, err
}

// Cancel marks the job canceled. A job that never started gets its failure
// notification here; a running one gets it from the worker when its
// pipeline unwinds.
func (s *jobService) Cancel(ctx context.Context, id uuid.UUID) (*domain.JobRun, error) {
	job, err := s.repo.Cancel(ctx, id)
	switch {
	case errors.Is(err, repos.ErrJobNotFound):
		return nil, apierr.New(http.StatusNotFound, "job_not_found", err)
	case errors.Is(err, repos.ErrJobFinished):
		return job, apierr.New(http.StatusConflict, "job_finished", err)
	case err != nil:
		return nil, fmt.Errorf("cancel job: %w", err)
	}
	s.log.Info("Job canceled", "job_id", id, "was_started", job.StartedAt != nil)
	if job.StartedAt == nil && s.notify != nil {
		s.notify.JobFailed(job, "queued", "job canceled: "+job.Error)
	}
	return job, nil
}

func (s *jobService) PurgeArtifacts(ctx context.Context, projectID string) (int, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" || strings.ContainsAny(projectID, `/\`) {
		return 0, apierr.New(http.StatusBadRequest, "invalid_project_id", fmt.Errorf("invalid project_id %q", projectID))
	}
	if s.bucket == nil {
		return 0, apierr.New(http.StatusServiceUnavailable, "storage_unavailable", errors.New("object storage not configured"))
	}
	prefix := path.Join("processed", projectID) + "/"
	keys, err := s.bucket.ListKeys(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list artifacts: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.bucket.DeletePrefix(ctx, prefix); err != nil {
		return 0, fmt.Errorf("delete artifacts: %w", err)
	}
	s.log.Info("Artifacts purged", "project_id", projectID, "objects", len(keys))
	return len(keys), nil
}

func decodeStrict(body []byte, dst any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return apierr.New(http.StatusBadRequest, "invalid_body", errors.New("request body required"))
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierr.New(http.StatusBadRequest, "invalid_body", err)
	}
	return nil
}

func inputError(err error) error {
	var ie *domain.InputError
	if errors.As(err, &ie) {
		return apierr.New(http.StatusBadRequest, "invalid_input", err)
	}
	return err
}
