package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aimeuniverse/contentsync/internal/database"
	"github.com/aimeuniverse/contentsync/internal/jobs"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

// jobsHandler handles job queue HTTP requests.
type jobsHandler struct {
	jobs        JobService
	transcripts TranscriptSearcher
	log         logger.Logger
}

func newJobsHandler(jobSvc JobService, transcripts TranscriptSearcher, log logger.Logger) *jobsHandler {
	return &jobsHandler{jobs: jobSvc, transcripts: transcripts, log: log}
}

// List handles GET /api/v1/jobs.
func (h *jobsHandler) List(c *gin.Context) {
	status := c.Query("status")
	limit, offset := limitOffset(c)

	jobList, total, err := h.jobs.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		h.log.Error("failed to list jobs", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobList,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// createJobRequest is the POST /jobs body.
type createJobRequest struct {
	ContentRecordID string `json:"content_record_id" binding:"required"`
	Backend         string `json:"backend"`
}

// Create handles POST /api/v1/jobs. Returns 200 with the existing job
// when one is already in flight for the record, 201 when a new job was
// created.
func (h *jobsHandler) Create(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_record_id is required"})
		return
	}

	job, created, err := h.jobs.Enqueue(c.Request.Context(), req.ContentRecordID, req.Backend)
	switch {
	case errors.Is(err, jobs.ErrQueueFull):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		return
	case errors.Is(err, jobs.ErrUnknownBackend):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.log.Error("failed to enqueue job", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, job)
}

// Get handles GET /api/v1/jobs/:id.
func (h *jobsHandler) Get(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		h.log.Error("failed to get job", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// Retry handles POST /api/v1/jobs/:id/retry.
func (h *jobsHandler) Retry(c *gin.Context) {
	job, err := h.jobs.Retry(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, database.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "only failed jobs can be retried"})
		return
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	case err != nil:
		h.log.Error("failed to retry job", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retry job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// Stats handles GET /api/v1/jobs/stats.
func (h *jobsHandler) Stats(c *gin.Context) {
	counts, err := h.jobs.Stats(c.Request.Context())
	if err != nil {
		h.log.Error("failed to get job stats", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve job stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

// Search handles GET /api/v1/jobs/search: full-text search over
// completed job results.
func (h *jobsHandler) Search(c *gin.Context) {
	if h.transcripts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transcript search is not configured"})
		return
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	limit, _ := limitOffset(c)

	hits, err := h.transcripts.Search(c.Request.Context(), query, limit)
	if err != nil {
		h.log.Error("transcript search failed", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"hits": hits, "total": len(hits)})
}
