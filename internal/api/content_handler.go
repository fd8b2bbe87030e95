package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimeuniverse/contentsync/internal/database"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

// contentHandler serves the content record change feed.
type contentHandler struct {
	content database.ContentRepositoryInterface
	log     logger.Logger
}

func newContentHandler(content database.ContentRepositoryInterface, log logger.Logger) *contentHandler {
	return &contentHandler{content: content, log: log}
}

// ListChanged handles GET /api/v1/contentrecords: records changed since
// a timestamp, optionally filtered by provider and kind. Consumers use
// it to catch up without replaying the event stream.
func (h *contentHandler) ListChanged(c *gin.Context) {
	limit, offset := limitOffset(c)

	filters := database.ContentFilters{
		Provider: c.Query("provider"),
		Kind:     c.Query("kind"),
		Limit:    limit,
		Offset:   offset,
	}

	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 timestamp"})
			return
		}
		filters.Since = &since
	}

	records, err := h.content.ListChanged(c.Request.Context(), filters)
	if err != nil {
		h.log.Error("failed to list changed records", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve content records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   len(records),
		"limit":   limit,
		"offset":  offset,
	})
}
