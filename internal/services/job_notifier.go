package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/karatrack-backend/internal/domain"
	"github.com/yungbote/karatrack-backend/internal/observability"
	"github.com/yungbote/karatrack-backend/internal/platform/httpx"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

// JobNotifier reports job lifecycle events. Implementations never fail the
// job: delivery problems are logged and dropped.
type JobNotifier interface {
	JobProgress(job *domain.JobRun, stage string, progress int, message string)
	JobFailed(job *domain.JobRun, stage string, errorMessage string)
	JobDone(job *domain.JobRun)
}

// CallbackPayload is the body POSTed to a job's callback_url.
type CallbackPayload struct {
	JobID     string           `json:"job_id"`
	ProjectID string           `json:"project_id"`
	Status    domain.JobStatus `json:"status"`
	Results   json.RawMessage  `json:"results,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type callbackNotifier struct {
	log     *logger.Logger
	client  *http.Client
	timeout time.Duration
}

func NewJobNotifier(log *logger.Logger, client *http.Client) JobNotifier {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &callbackNotifier{
		log:     log.With("service", "JobNotifier"),
		client:  client,
		timeout: 15 * time.Second,
	}
}

func (n *callbackNotifier) JobProgress(job *domain.JobRun, stage string, progress int, message string) {
	n.log.Debug("job progress",
		"job_id", job.ID,
		"project_id", job.ProjectID,
		"stage", stage,
		"progress", progress,
		"message", message,
	)
}

func (n *callbackNotifier) JobFailed(job *domain.JobRun, stage string, errorMessage string) {
	n.log.Warn("job failed", "job_id", job.ID, "job_type", job.JobType, "stage", stage, "error", errorMessage)
	n.deliver(job, CallbackPayload{
		JobID:     job.ID.String(),
		ProjectID: job.ProjectID,
		Status:    domain.JobStatusFailed,
		Error:     errorMessage,
	})
}

func (n *callbackNotifier) JobDone(job *domain.JobRun) {
	n.log.Info("job finished", "job_id", job.ID, "job_type", job.JobType, "status", job.Status)
	n.deliver(job, CallbackPayload{
		JobID:     job.ID.String(),
		ProjectID: job.ProjectID,
		Status:    job.Status,
		Results:   job.Result,
	})
}

// deliver runs detached from the job context so canceled jobs still report.
func (n *callbackNotifier) deliver(job *domain.JobRun, body CallbackPayload) {
	url := strings.TrimSpace(job.CallbackURL)
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	headers := map[string]string{"User-Agent": "karatrack-backend"}
	if err := httpx.DoJSON(ctx, n.client, "callback", http.MethodPost, url, headers, body, nil); err != nil {
		n.log.Warn("callback delivery failed", "job_id", job.ID, "callback_url", url, "error", err)
		observability.Current().ObserveCallback(false)
		return
	}
	observability.Current().ObserveCallback(true)
	n.log.Debug("callback delivered", "job_id", job.ID, "status", body.Status)
}
