// Package handlers exposes the job API over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"transcriptor/internal/archive"
	"transcriptor/internal/jobs"
	"transcriptor/internal/pipeline"
)

// Service is the job-facing API the handlers drive.
type Service interface {
	Submit(req pipeline.Request) (string, error)
	Retry(id string) (string, error)
}

// History lists archived terminal jobs. Optional.
type History interface {
	List(ctx context.Context, limit int) ([]archive.Entry, error)
}

// JobHandler serves the job endpoints.
type JobHandler struct {
	svc     Service
	store   *jobs.Store
	history History
}

// NewJobHandler creates a JobHandler. history may be nil.
func NewJobHandler(svc Service, store *jobs.Store, history History) *JobHandler {
	return &JobHandler{svc: svc, store: store, history: history}
}

// Register mounts the job routes on the group.
func (h *JobHandler) Register(g *echo.Group) {
	g.POST("/jobs", h.Submit)
	g.GET("/jobs/:id", h.Status)
	g.GET("/jobs/:id/result", h.Result)
	g.POST("/jobs/:id/cancel", h.Cancel)
	g.POST("/jobs/:id/retry", h.Retry)
	g.GET("/jobs/:id/files/:filename", h.Download)
	g.GET("/history", h.History)
}

// Submit accepts a batch and starts its background job.
func (h *JobHandler) Submit(c echo.Context) error {
	var req pipeline.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.URLs) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "no URLs provided"})
	}

	id, err := h.svc.Submit(req)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "job submitted successfully",
		"job_id":  id,
	})
}

// Status returns the lifecycle state of a job.
func (h *JobHandler) Status(c echo.Context) error {
	snap, err := h.store.Get(c.Param("id"))
	if err != nil {
		return jobError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"job_id": snap.ID,
		"status": snap.Status,
		"error":  snap.Error,
	})
}

// Result returns the outcome of a terminal job. Jobs still running get a
// conflict response, never partial data.
func (h *JobHandler) Result(c echo.Context) error {
	snap, err := h.store.Result(c.Param("id"))
	if err != nil {
		return jobError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"job_id":          snap.ID,
		"status":          snap.Status,
		"error":           snap.Error,
		"output_dir":      snap.OutputDir,
		"files":           snap.Files,
		"processed_count": snap.Processed,
		"failed_urls":     snap.FailedURLs,
	})
}

// Cancel requests cooperative cancellation of a job.
func (h *JobHandler) Cancel(c echo.Context) error {
	if err := h.store.RequestCancel(c.Param("id")); err != nil {
		return jobError(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "cancellation requested",
	})
}

// Retry resubmits a failed job under a new id.
func (h *JobHandler) Retry(c echo.Context) error {
	id, err := h.svc.Retry(c.Param("id"))
	if err != nil {
		return jobError(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "job resubmitted",
		"job_id":  id,
	})
}

// Download serves a generated transcript file. Only files the job actually
// produced are reachable.
func (h *JobHandler) Download(c echo.Context) error {
	snap, err := h.store.Get(c.Param("id"))
	if err != nil {
		return jobError(c, err)
	}

	filename := c.Param("filename")
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid filename"})
	}
	if snap.OutputDir == "" {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job has no output directory"})
	}

	known := false
	for _, f := range snap.Files {
		if f == filename {
			known = true
			break
		}
	}
	if !known {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "file not found"})
	}

	return c.Attachment(filepath.Join(snap.OutputDir, filename), filename)
}

// History lists archived terminal jobs, newest first.
func (h *JobHandler) History(c echo.Context) error {
	if h.history == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "history is not enabled"})
	}

	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	entries, err := h.history.List(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if entries == nil {
		entries = []archive.Entry{}
	}

	return c.JSON(http.StatusOK, entries)
}

// jobError maps the job-layer sentinel errors to HTTP responses.
func jobError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	case errors.Is(err, jobs.ErrNotFinished):
		return c.JSON(http.StatusConflict, map[string]string{"error": "job is not finished"})
	case errors.Is(err, jobs.ErrNotCancellable):
		return c.JSON(http.StatusConflict, map[string]string{"error": "job cannot be cancelled in its current state"})
	case errors.Is(err, jobs.ErrNotRetryable):
		return c.JSON(http.StatusConflict, map[string]string{"error": "only failed jobs can be retried"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
