// Package api implements the HTTP API: sync triggering and status,
// the job queue endpoints, validation votes and consensus, and the
// content change feed.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimeuniverse/contentsync/internal/database"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	defaultLimit      = 50
	maxLimit          = 500
)

// Deps bundles the services the router exposes.
type Deps struct {
	Sync        SyncService
	Jobs        JobService
	Votes       VoteService
	Transcripts TranscriptSearcher
	States      database.SyncStateRepositoryInterface
	Content     database.ContentRepositoryInterface
	Runs        database.RunRepositoryInterface
	Logger      logger.Logger
}

// SetupRouter creates the Gin router with all routes registered.
func SetupRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(deps.Logger))

	router.GET("/health", healthHandler(deps))

	v1 := router.Group("/api/v1")

	syncH := newSyncHandler(deps.Sync, deps.States, deps.Content, deps.Runs, deps.Logger)
	v1.POST("/sync", syncH.Trigger)
	v1.GET("/sync/status", syncH.Status)
	v1.GET("/sync/runs", syncH.Runs)

	jobsH := newJobsHandler(deps.Jobs, deps.Transcripts, deps.Logger)
	v1.GET("/jobs", jobsH.List)
	v1.POST("/jobs", jobsH.Create)
	v1.GET("/jobs/stats", jobsH.Stats)
	v1.GET("/jobs/search", jobsH.Search)
	v1.GET("/jobs/:id", jobsH.Get)
	v1.POST("/jobs/:id/retry", jobsH.Retry)

	votesH := newValidationHandler(deps.Votes, deps.Logger)
	v1.POST("/validations", votesH.RecordVote)
	v1.GET("/validations/:recordID", votesH.ListVotes)
	v1.GET("/consensus/:chunkID", votesH.GetConsensus)

	contentH := newContentHandler(deps.Content, deps.Logger)
	v1.GET("/contentrecords", contentH.ListChanged)

	return router
}

// healthHandler reports liveness.
func healthHandler(_ Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// loggingMiddleware logs each request through the structured logger.
func loggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		log.Info("http request",
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.String("query", query),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
		)
	}
}

// limitOffset parses pagination query parameters with bounds applied.
func limitOffset(c *gin.Context) (limit, offset int) {
	limit = intQuery(c, "limit", defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset = intQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// intQuery parses an integer query parameter with a fallback.
func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
