package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aimeuniverse/contentsync/internal/consensus"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

// validationHandler handles validation vote and consensus requests.
type validationHandler struct {
	votes VoteService
	log   logger.Logger
}

func newValidationHandler(votes VoteService, log logger.Logger) *validationHandler {
	return &validationHandler{votes: votes, log: log}
}

// RecordVote handles POST /api/v1/validations.
func (h *validationHandler) RecordVote(c *gin.Context) {
	var in consensus.VoteInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	vote, err := h.votes.RecordVote(c.Request.Context(), in)
	if err != nil {
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("failed to record vote", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record vote"})
		return
	}

	c.JSON(http.StatusCreated, vote)
}

// ListVotes handles GET /api/v1/validations/:recordID.
func (h *validationHandler) ListVotes(c *gin.Context) {
	votes, err := h.votes.ListVotes(c.Request.Context(), c.Param("recordID"))
	if err != nil {
		h.log.Error("failed to list votes", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve votes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"votes": votes, "total": len(votes)})
}

// GetConsensus handles GET /api/v1/consensus/:chunkID.
func (h *validationHandler) GetConsensus(c *gin.Context) {
	score, err := h.votes.GetConsensus(c.Request.Context(), c.Param("chunkID"))
	if err != nil {
		h.log.Error("failed to compute consensus", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute consensus"})
		return
	}

	c.JSON(http.StatusOK, score)
}

// isValidationError reports whether err is a client-input problem.
func isValidationError(err error) bool {
	return errors.Is(err, consensus.ErrInvalidScore) ||
		errors.Is(err, consensus.ErrInvalidConfidence) ||
		errors.Is(err, consensus.ErrInvalidValidator) ||
		errors.Is(err, consensus.ErrMissingRecord)
}
