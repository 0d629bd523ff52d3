package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"momentiq.app/pipeline/internal/model"
	"momentiq.app/pipeline/internal/normalize"
	"momentiq.app/pipeline/internal/service"
)

// AnalyticsWebhookHandler receives analytics export batches. Signatures are a
// plain HMAC digest over the body.
type AnalyticsWebhookHandler struct {
	integrations service.IntegrationService
	ingest       service.IngestService
}

func NewAnalyticsWebhookHandler(integrations service.IntegrationService, ingest service.IngestService) *AnalyticsWebhookHandler {
	return &AnalyticsWebhookHandler{integrations: integrations, ingest: ingest}
}

type analyticsBatchRequest struct {
	Events []normalize.AnalyticsEvent `json:"events"`
}

func (h *AnalyticsWebhookHandler) HandleBatch(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := integrationID(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	integration, err := h.integrations.Authorize(ctx, id, model.SourceTypeAnalytics, body, service.WebhookSignature{
		Signature: c.GetHeader(headerSignature),
	})
	if rejected(c, err) {
		return
	}

	var request analyticsBatchRequest
	if err := json.Unmarshal(body, &request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(request.Events) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "events are required"})
		return
	}

	result, err := h.ingest.ImportAnalyticsBatch(ctx, integration, request.Events)
	if rejected(c, err) {
		return
	}

	slog.InfoContext(ctx, "analytics batch imported",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"csat_responses_created", result.CsatResponsesCreated,
		"errors", len(result.Errors))

	c.JSON(http.StatusOK, result)
}
