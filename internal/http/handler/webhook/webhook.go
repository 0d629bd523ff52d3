// Package webhook holds the inbound webhook handlers. Every endpoint gives
// the caller a synchronous accept/reject: authentication and persistence
// happen in the request, follow-up work is queued.
package webhook

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"momentiq.app/pipeline/internal/normalize"
	"momentiq.app/pipeline/internal/service"
)

const (
	headerSignature = "X-Webhook-Signature"
	headerTimestamp = "X-Webhook-Timestamp"
)

func integrationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("integration_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid integration id"})
		return 0, false
	}
	return id, true
}

// rejected maps service sentinels onto HTTP statuses and writes the response.
// Returns false when err is nil.
func rejected(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, service.ErrIntegrationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "integration not found"})
	case errors.Is(err, service.ErrIntegrationDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "integration is disabled"})
	case errors.Is(err, service.ErrSignatureInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
	case errors.Is(err, normalize.ErrMissingFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload missing mandatory fields"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
	}
	return true
}

// traceID extracts the active trace for propagation across the queue.
func traceID(c *gin.Context) string {
	sc := trace.SpanContextFromContext(c.Request.Context())
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
