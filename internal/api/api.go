// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api exposes the session lifecycle over HTTP. Sessions are created
// synchronously and processed in the background; clients poll the session
// for its status and fetch results or an export once it completes.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/doc-collector/internal/collector"
	"github.com/pdiddy/doc-collector/internal/export"
	"github.com/pdiddy/doc-collector/internal/store"
	"github.com/pdiddy/doc-collector/pkg/types"
)

// ErrorCode classifies an error response.
type ErrorCode string

const (
	ErrorCodeInvalidJSON     ErrorCode = "INVALID_JSON"
	ErrorCodeInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrorCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrorCodeInternalError   ErrorCode = "INTERNAL_ERROR"
)

// APIError is the body of every error response.
type APIError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func sendError(c *gin.Context, status int, code ErrorCode, msg string) {
	c.JSON(status, APIError{Code: code, Message: msg, Timestamp: time.Now().UTC()})
}

// API serves the session endpoints.
type API struct {
	collector *collector.Collector

	// ctx bounds background session runs.
	ctx    context.Context
	wg     sync.WaitGroup
	logger *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// New creates an API. Sessions started through it run until ctx ends.
func New(ctx context.Context, c *collector.Collector, opts ...Option) *API {
	a := &API{
		collector: c,
		ctx:       ctx,
		logger:    slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Wait blocks until every background session run has returned.
func (a *API) Wait() {
	a.wg.Wait()
}

// SetupRoutes registers the endpoints on router.
func (a *API) SetupRoutes(router *gin.Engine) {
	router.GET("/health", a.HealthHandler)

	sessions := router.Group("/sessions")
	{
		sessions.POST("", a.CreateSessionHandler)
		sessions.GET("", a.ListSessionsHandler)
		sessions.GET("/:id", a.GetSessionHandler)
		sessions.GET("/:id/results", a.ListResultsHandler)
		sessions.GET("/:id/export", a.ExportHandler)
	}
}

// NewRouter returns a gin engine with the endpoints and recovery installed.
func (a *API) NewRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), a.requestLogger())
	a.SetupRoutes(router)
	return router
}

func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Debug("request", "method", c.Request.Method, "path", c.FullPath(),
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}

// HealthHandler reports liveness and the enabled engines.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "engines": a.collector.Engines()})
}

// CreateSessionHandler records a session and starts it in the background.
// Request Body: collector.Request
func (a *API) CreateSessionHandler(c *gin.Context) {
	var req collector.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, ErrorCodeInvalidJSON, "invalid request body: "+err.Error())
		return
	}

	sess, err := a.collector.Create(c.Request.Context(), req)
	switch {
	case errors.Is(err, collector.ErrEmptyQuery), errors.Is(err, collector.ErrUnknownEngine), errors.Is(err, collector.ErrNoEngines):
		sendError(c, http.StatusBadRequest, ErrorCodeInvalidRequest, err.Error())
		return
	case err != nil:
		a.internalError(c, err)
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.collector.Run(a.ctx, sess, req); err != nil {
			a.logger.Warn("background session failed", "session", sess.ID, "err", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"session_id": sess.ID,
		"status":     sess.Status,
		"links": gin.H{
			"self":    fmt.Sprintf("/sessions/%d", sess.ID),
			"results": fmt.Sprintf("/sessions/%d/results", sess.ID),
			"export":  fmt.Sprintf("/sessions/%d/export", sess.ID),
		},
	})
}

// ListSessionsHandler lists recent sessions. Query: limit (default 20).
func (a *API) ListSessionsHandler(c *gin.Context) {
	limit := 20
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			sendError(c, http.StatusBadRequest, ErrorCodeInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	sessions, err := a.collector.Sessions(c.Request.Context(), limit)
	if err != nil {
		a.internalError(c, err)
		return
	}
	if sessions == nil {
		sessions = []types.SessionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "total": len(sessions)})
}

// GetSessionHandler returns a session with its result counts.
func (a *API) GetSessionHandler(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	sum, err := a.collector.Summary(c.Request.Context(), id)
	if err != nil {
		a.lookupError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// ListResultsHandler lists a session's results. Query: status.
func (a *API) ListResultsHandler(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	status := types.DownloadStatus(c.Query("status"))
	switch status {
	case "", types.DownloadPending, types.DownloadDownloaded, types.DownloadFailed, types.DownloadSkipped:
	default:
		sendError(c, http.StatusBadRequest, ErrorCodeInvalidRequest, fmt.Sprintf("unknown status %q", status))
		return
	}

	results, err := a.collector.Results(c.Request.Context(), id, status)
	if err != nil {
		a.lookupError(c, id, err)
		return
	}
	if results == nil {
		results = []types.ResultRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "results": results, "total": len(results)})
}

// ExportHandler streams the surviving documents of a session as CSV or
// Excel. Query: format (csv|excel).
func (a *API) ExportHandler(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		sendError(c, http.StatusBadRequest, ErrorCodeInvalidRequest, err.Error())
		return
	}
	records, err := a.collector.Results(c.Request.Context(), id, types.DownloadDownloaded)
	if err != nil {
		a.lookupError(c, id, err)
		return
	}

	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(id, format)))
	c.Status(http.StatusOK)
	if _, err := export.Write(c.Writer, format, records); err != nil {
		a.logger.Error("writing export", "session", id, "err", err)
	}
}

func sessionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		sendError(c, http.StatusBadRequest, ErrorCodeInvalidRequest, "session id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (a *API) lookupError(c *gin.Context, id int64, err error) {
	if errors.Is(err, store.ErrNotFound) {
		sendError(c, http.StatusNotFound, ErrorCodeSessionNotFound, fmt.Sprintf("session %d not found", id))
		return
	}
	a.internalError(c, err)
}

func (a *API) internalError(c *gin.Context, err error) {
	a.logger.Error("request failed", "path", c.FullPath(), "err", err)
	sendError(c, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
