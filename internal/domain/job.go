package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeKaraokeBuild     JobType = "karaoke_build"
	JobTypeKaraokeRender    JobType = "karaoke_render"
	JobTypeLyricsTranscribe JobType = "lyrics_transcribe"
)

func (t JobType) Valid() bool {
	switch t {
	case JobTypeKaraokeBuild, JobTypeKaraokeRender, JobTypeLyricsTranscribe:
		return true
	}
	return false
}

type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusRunning     JobStatus = "running"
	JobStatusTranscribed JobStatus = "transcribed"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCanceled    JobStatus = "canceled"
)

func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusTranscribed, JobStatusCompleted, JobStatusFailed, JobStatusCanceled:
		return true
	}
	return false
}

// JobRun is one submitted job. ProjectID is the caller's identifier and the
// one echoed in callbacks; ID is ours.
type JobRun struct {
	ID          uuid.UUID       `json:"id"`
	ProjectID   string          `json:"project_id"`
	JobType     JobType         `json:"job_type"`
	Status      JobStatus       `json:"status"`
	Stage       string          `json:"stage"`
	Progress    int             `json:"progress"`
	Message     string          `json:"message,omitempty"`
	Error       string          `json:"error,omitempty"`
	CallbackURL string          `json:"callback_url,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	TraceID     string          `json:"trace_id,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

func (j *JobRun) Clone() *JobRun {
	if j == nil {
		return nil
	}
	out := *j
	out.Payload = append(json.RawMessage(nil), j.Payload...)
	out.Result = append(json.RawMessage(nil), j.Result...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		out.FinishedAt = &t
	}
	return &out
}
