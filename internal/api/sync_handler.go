package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aimeuniverse/contentsync/internal/database"
	"github.com/aimeuniverse/contentsync/internal/logger"
	"github.com/aimeuniverse/contentsync/internal/syncer"
)

// defaultRunsLimit bounds the run history response.
const defaultRunsLimit = 20

// syncHandler handles sync trigger and status requests.
type syncHandler struct {
	sync    SyncService
	states  database.SyncStateRepositoryInterface
	content database.ContentRepositoryInterface
	runs    database.RunRepositoryInterface
	log     logger.Logger
}

func newSyncHandler(
	sync SyncService,
	states database.SyncStateRepositoryInterface,
	content database.ContentRepositoryInterface,
	runs database.RunRepositoryInterface,
	log logger.Logger,
) *syncHandler {
	return &syncHandler{
		sync:    sync,
		states:  states,
		content: content,
		runs:    runs,
		log:     log,
	}
}

// triggerRequest is the POST /sync body.
type triggerRequest struct {
	Providers []string `json:"providers"`
	Force     bool     `json:"force_full_sync"`
}

// Trigger handles POST /api/v1/sync. The run executes synchronously
// and the full report is returned.
func (h *syncHandler) Trigger(c *gin.Context) {
	var req triggerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	report, err := h.sync.Run(c.Request.Context(), syncer.Request{
		Providers: req.Providers,
		Force:     req.Force,
	})
	if err != nil {
		if errors.Is(err, syncer.ErrNoProviders) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("sync run failed", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync run failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// Status handles GET /api/v1/sync/status: per-provider sync state plus
// stored record counts.
func (h *syncHandler) Status(c *gin.Context) {
	states, err := h.states.List(c.Request.Context())
	if err != nil {
		h.log.Error("failed to list sync states", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve sync status"})
		return
	}

	counts, err := h.content.CountByProvider(c.Request.Context())
	if err != nil {
		h.log.Error("failed to count content records", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve record counts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"providers":     states,
		"record_counts": counts,
	})
}

// Runs handles GET /api/v1/sync/runs: recent run history, newest first.
func (h *syncHandler) Runs(c *gin.Context) {
	limit := intQuery(c, "limit", defaultRunsLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultRunsLimit
	}

	runs, err := h.runs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("failed to list sync runs", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve sync runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
