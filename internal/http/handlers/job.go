package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/karatrack-backend/internal/domain"
	"github.com/yungbote/karatrack-backend/internal/http/response"
	"github.com/yungbote/karatrack-backend/internal/platform/apierr"
	"github.com/yungbote/karatrack-backend/internal/services"
)

// maxRequestBody caps submissions; a render request carries a whole timeline.
const maxRequestBody = 8 << 20

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// POST /api/jobs/build
func (h *JobHandler) SubmitBuild(c *gin.Context) { h.submit(c, domain.JobTypeKaraokeBuild) }

// POST /api/jobs/render
func (h *JobHandler) SubmitRender(c *gin.Context) { h.submit(c, domain.JobTypeKaraokeRender) }

// POST /api/jobs/transcribe
func (h *JobHandler) SubmitTranscribe(c *gin.Context) { h.submit(c, domain.JobTypeLyricsTranscribe) }

func (h *JobHandler) submit(c *gin.Context, jobType domain.JobType) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody))
	if err != nil {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "body_too_large", fmt.Errorf("read body: %w", err))
		return
	}
	job, err := h.jobs.Submit(c.Request.Context(), jobType, body)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Header("Location", "/api/jobs/"+job.ID.String())
	response.RespondAccepted(c, gin.H{"job": job})
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	job, err := h.jobs.Cancel(c.Request.Context(), jobID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// DELETE /api/projects/:project_id/artifacts
func (h *JobHandler) PurgeArtifacts(c *gin.Context) {
	n, err := h.jobs.PurgeArtifacts(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"project_id": c.Param("project_id"), "deleted": n})
}

func parseJobID(c *gin.Context) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondErr(c, apierr.New(http.StatusBadRequest, "invalid_job_id", err))
		return uuid.Nil, false
	}
	return jobID, true
}
