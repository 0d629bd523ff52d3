package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"momentiq.app/pipeline/internal/queue"
)

// QueueAdmin is the slice of the queue the observability endpoints need.
type QueueAdmin interface {
	Stats(ctx context.Context) (queue.Stats, error)
	RetryDeadLetter(ctx context.Context, jobID string) (bool, error)
	ClearDeadLetter(ctx context.Context) (int64, error)
}

type QueueHandler struct {
	admin QueueAdmin
}

func NewQueueHandler(admin QueueAdmin) *QueueHandler {
	return &QueueHandler{admin: admin}
}

func (h *QueueHandler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to read queue stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read queue stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *QueueHandler) RetryDeadLetter(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job id is required"})
		return
	}

	found, err := h.admin.RetryDeadLetter(c.Request.Context(), jobID)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to retry dead-letter job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retry job"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "job_id": jobID})
}

func (h *QueueHandler) ClearDeadLetter(c *gin.Context) {
	cleared, err := h.admin.ClearDeadLetter(c.Request.Context())
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to clear dead-letter set", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear dead-letter set"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "cleared": cleared})
}
