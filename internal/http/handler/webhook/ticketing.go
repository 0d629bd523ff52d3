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

// TicketingWebhookHandler receives satisfaction-rating webhooks from
// ticketing providers. Signatures use the version-prefixed HMAC scheme.
type TicketingWebhookHandler struct {
	integrations service.IntegrationService
	ingest       service.IngestService
}

func NewTicketingWebhookHandler(integrations service.IntegrationService, ingest service.IngestService) *TicketingWebhookHandler {
	return &TicketingWebhookHandler{integrations: integrations, ingest: ingest}
}

func (h *TicketingWebhookHandler) HandleEvent(c *gin.Context) {
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

	integration, err := h.integrations.Authorize(ctx, id, model.SourceTypeTicketing, body, service.WebhookSignature{
		Signature: c.GetHeader(headerSignature),
		Timestamp: c.GetHeader(headerTimestamp),
	})
	if rejected(c, err) {
		return
	}

	var payload normalize.TicketPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	normalized, err := normalize.NormalizeTicket(payload)
	if rejected(c, err) {
		return
	}

	cfg, err := h.integrations.Config(integration)
	if rejected(c, err) {
		return
	}

	result, err := h.ingest.Ingest(ctx, service.IngestParams{
		Integration: integration,
		Config:      cfg,
		SourceType:  model.SourceTypeTicketing,
		Payload:     body,
		Normalized:  normalized,
		TraceID:     traceID(c),
	})
	if rejected(c, err) {
		return
	}

	slog.InfoContext(ctx, "ticketing webhook processed",
		"external_id", normalized.ExternalID,
		"duplicated", result.Duplicated,
		"enqueued", result.Enqueued)

	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"inbound_event_id": result.Event.ID,
		"duplicated":       result.Duplicated,
	})
}
