package webhook

import (
	"crypto/x509"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"momentiq.app/pipeline/internal/model"
	"momentiq.app/pipeline/internal/normalize"
	"momentiq.app/pipeline/internal/service"
	"momentiq.app/pipeline/internal/signature"
)

// AppStoreWebhookHandler receives store-server notifications. Authenticity
// comes from the JWS envelope itself: the x5c chain must verify against the
// provider roots before the payload is trusted.
type AppStoreWebhookHandler struct {
	integrations service.IntegrationService
	ingest       service.IngestService
	roots        *x509.CertPool
}

func NewAppStoreWebhookHandler(integrations service.IntegrationService, ingest service.IngestService, roots *x509.CertPool) *AppStoreWebhookHandler {
	return &AppStoreWebhookHandler{integrations: integrations, ingest: ingest, roots: roots}
}

type appStoreNotificationRequest struct {
	SignedPayload string `json:"signedPayload"`
}

type appStoreNotification struct {
	NotificationType string `json:"notificationType"`
	Data             struct {
		Review normalize.AppStoreReview `json:"review"`
	} `json:"data"`
}

func (h *AppStoreWebhookHandler) HandleNotification(c *gin.Context) {
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

	var request appStoreNotificationRequest
	if err := json.Unmarshal(body, &request); err != nil || request.SignedPayload == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signedPayload is required"})
		return
	}

	integration, err := h.integrations.Authorize(ctx, id, model.SourceTypeAppStore, body, service.WebhookSignature{})
	if rejected(c, err) {
		return
	}

	decoded, err := signature.DecodeJWS(request.SignedPayload, h.roots)
	if err != nil {
		slog.WarnContext(ctx, "store notification rejected", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signed payload"})
		return
	}

	var notification appStoreNotification
	if err := json.Unmarshal(decoded, &notification); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification payload"})
		return
	}

	normalized, err := normalize.NormalizeReview(notification.Data.Review)
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
		SourceType:  model.SourceTypeAppStore,
		Payload:     decoded,
		Normalized:  normalized,
		TraceID:     traceID(c),
	})
	if rejected(c, err) {
		return
	}

	slog.InfoContext(ctx, "store notification processed",
		"notification_type", notification.NotificationType,
		"external_id", normalized.ExternalID,
		"duplicated", result.Duplicated)

	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"inbound_event_id": result.Event.ID,
		"duplicated":       result.Duplicated,
	})
}
