package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/karatrack-backend/internal/data/repos"
	"github.com/yungbote/karatrack-backend/internal/domain"
	"github.com/yungbote/karatrack-backend/internal/observability"
	"github.com/yungbote/karatrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/karatrack-backend/internal/services"
)

/*
Context is the execution handle for a single job run and the only sanctioned
way for pipelines to report progress or terminate.

	- Ctx: cancellation and deadline for this run
	- Job: in-memory copy of the stored job
	- Repo: job store; every write is guarded so a canceled job is never
	  overwritten
	- Notify: progress and terminal notifications (callback delivery)

Pipelines never write the job record directly.
*/
type Context struct {
	Ctx    context.Context
	Job    *domain.JobRun
	Repo   repos.JobRunRepo
	Notify services.JobNotifier

	span trace.Span
}

var tracer = otel.Tracer("karatrack/jobs")

func NewContext(ctx context.Context, job *domain.JobRun, repo repos.JobRunRepo, notify services.JobNotifier) *Context {
	c := &Context{Ctx: ctxutil.Default(ctx), Job: job, Repo: repo, Notify: notify}
	c.applyTraceData()
	return c
}

func (c *Context) applyTraceData() {
	if c.Job == nil {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{
		TraceID:   c.Job.TraceID,
		RequestID: c.Job.RequestID,
		JobID:     c.Job.ID.String(),
	})
}

// DecodePayload unmarshals the job payload into dst, rejecting unknown
// fields. A malformed payload is an input error.
func (c *Context) DecodePayload(dst any) error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return &domain.InputError{Reason: "empty job payload"}
	}
	if err := strictUnmarshal(c.Job.Payload, dst); err != nil {
		return &domain.InputError{Reason: "malformed job payload: " + err.Error()}
	}
	return nil
}

// StartStage opens a tracing span for one pipeline stage; the returned func
// ends it. The context in c.Ctx is swapped for the span's context meanwhile.
func (c *Context) StartStage(stage string) func(err error) {
	parent := c.Ctx
	ctx, span := tracer.Start(parent, "job."+stage, trace.WithAttributes(
		attribute.String("job.id", c.jobID()),
		attribute.String("job.type", c.jobType()),
	))
	c.Ctx = ctx
	start := time.Now()
	return func(err error) {
		observability.Current().ObserveStage(stage, err != nil, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.Ctx = parent
	}
}

// Progress records a non-terminal update.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now().UTC()
	if c.Repo != nil {
		ok, _ := c.Repo.UpdateUnlessStatus(detached(c.Ctx), c.Job.ID, []domain.JobStatus{domain.JobStatusCanceled}, func(j *domain.JobRun) {
			j.Stage = stage
			j.Progress = pct
			j.Message = msg
			j.UpdatedAt = now
		})
		if !ok {
			return
		}
	}
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.Message = msg
	c.Job.UpdatedAt = now
	if c.Notify != nil {
		c.Notify.JobProgress(c.Job, stage, pct, msg)
	}
}

/*
Fail marks the run failed. The stored record keeps status canceled when the
job was canceled, but the failure notification is delivered either way so
callers always learn that the job ended.
*/
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now().UTC()
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	if errors.Is(err, context.Canceled) {
		msg = "job canceled: " + msg
	}
	if c.Repo != nil {
		_, _ = c.Repo.UpdateUnlessStatus(detached(c.Ctx), c.Job.ID, []domain.JobStatus{domain.JobStatusCanceled}, func(j *domain.JobRun) {
			j.Status = domain.JobStatusFailed
			j.Stage = stage
			j.Message = ""
			j.Error = msg
			j.FinishedAt = &now
			j.UpdatedAt = now
		})
	}
	c.Job.Status = domain.JobStatusFailed
	c.Job.Stage = stage
	c.Job.Message = ""
	c.Job.Error = msg
	c.Job.FinishedAt = &now
	c.Job.UpdatedAt = now
	if c.Notify != nil {
		c.Notify.JobFailed(c.Job, stage, msg)
	}
}

// Succeed stores result and finishes the run with status (completed, or
// transcribed for partial pipelines).
func (c *Context) Succeed(status domain.JobStatus, finalStage string, result any) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now().UTC()
	var res json.RawMessage
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			c.Fail(finalStage, fmt.Errorf("encode result: %w", err))
			return
		}
		res = b
	}
	if c.Repo != nil {
		ok, _ := c.Repo.UpdateUnlessStatus(detached(c.Ctx), c.Job.ID, []domain.JobStatus{domain.JobStatusCanceled}, func(j *domain.JobRun) {
			j.Status = status
			j.Stage = finalStage
			j.Progress = 100
			j.Message = ""
			j.Error = ""
			j.Result = res
			j.FinishedAt = &now
			j.UpdatedAt = now
		})
		if !ok {
			return
		}
	}
	c.Job.Status = status
	c.Job.Stage = finalStage
	c.Job.Progress = 100
	c.Job.Message = ""
	c.Job.Error = ""
	c.Job.Result = res
	c.Job.FinishedAt = &now
	c.Job.UpdatedAt = now
	if c.Notify != nil {
		c.Notify.JobDone(c.Job)
	}
}

func (c *Context) jobID() string {
	if c.Job == nil {
		return ""
	}
	return c.Job.ID.String()
}

func (c *Context) jobType() string {
	if c.Job == nil {
		return ""
	}
	return string(c.Job.JobType)
}

// detached keeps request values but survives job cancellation, so status
// writes land after the run context is canceled.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctxutil.Default(ctx))
}
