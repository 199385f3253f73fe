package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/minutedhq/minuted/internal/http/dto"
	"github.com/minutedhq/minuted/internal/store"
)

// JobProcessor runs the agent pipeline for one job. Satisfied by
// *pipeline.Pipeline; narrowed to an interface so handler tests can stub it.
type JobProcessor interface {
	Process(ctx context.Context, jobID, transcript string)
}

type JobHandler struct {
	jobs      store.JobStore
	processor JobProcessor
}

func NewJobHandler(jobs store.JobStore, processor JobProcessor) *JobHandler {
	return &JobHandler{
		jobs:      jobs,
		processor: processor,
	}
}

// Submit accepts a transcript, creates the job record and schedules the
// pipeline without waiting for it. The goroutine gets a context detached
// from the request so the orchestration survives the response being sent.
func (h *JobHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid summarize request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID := uuid.NewString()
	if err := h.jobs.Create(jobID); err != nil {
		slog.ErrorContext(ctx, "failed to create job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	go h.processor.Process(context.WithoutCancel(ctx), jobID, *req.Transcript)

	c.JSON(http.StatusOK, dto.SummarizeResponse{
		JobID:  jobID,
		Status: "queued",
	})
}

// Status returns the current job record for polling clients.
func (h *JobHandler) Status(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.jobs.Get(jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "job not found"})
			return
		}
		slog.ErrorContext(c.Request.Context(), "failed to load job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{
		Status: string(job.Status),
		Error:  job.Error,
	})
}
