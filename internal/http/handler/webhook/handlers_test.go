package webhook_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"momentiq.app/pipeline/internal/http/handler/webhook"
	"momentiq.app/pipeline/internal/model"
	"momentiq.app/pipeline/internal/normalize"
	"momentiq.app/pipeline/internal/service"
	"momentiq.app/pipeline/internal/signature"
)

const webhookSecret = "secret"

// fakeIntegrationService authenticates against a fixed integration and
// secret, mirroring the real dispatch per source.
type fakeIntegrationService struct {
	integration *model.Integration
	disabled    bool
}

func (f *fakeIntegrationService) GetActive(ctx context.Context, integrationID int64) (*model.Integration, error) {
	if f.integration == nil || integrationID != f.integration.ID {
		return nil, service.ErrIntegrationNotFound
	}
	if f.disabled {
		return nil, service.ErrIntegrationDisabled
	}
	return f.integration, nil
}

func (f *fakeIntegrationService) Authorize(ctx context.Context, integrationID int64, source model.SourceType, payload []byte, sig service.WebhookSignature) (*model.Integration, error) {
	integration, err := f.GetActive(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	switch source {
	case model.SourceTypeAppStore:
		return integration, nil
	case model.SourceTypeTicketing:
		if !signature.VerifyPrefixedHMAC(payload, sig.Timestamp, sig.Signature, webhookSecret) {
			return nil, service.ErrSignatureInvalid
		}
	default:
		if !signature.VerifyPlainHMAC(payload, sig.Signature, webhookSecret) {
			return nil, service.ErrSignatureInvalid
		}
	}
	return integration, nil
}

func (f *fakeIntegrationService) Config(integration *model.Integration) (model.ConnectionConfig, error) {
	return model.ConnectionConfig{}, nil
}

func (f *fakeIntegrationService) Connect(ctx context.Context, params service.ConnectParams) (*model.Integration, error) {
	return nil, nil
}

func (f *fakeIntegrationService) RotateCredentials(ctx context.Context, integrationID int64, creds model.Credentials) error {
	return nil
}

func (f *fakeIntegrationService) SetEnabled(ctx context.Context, integrationID int64, enabled bool) error {
	return nil
}

func (f *fakeIntegrationService) Disconnect(ctx context.Context, integrationID int64) error {
	return nil
}

func (f *fakeIntegrationService) ListByProject(ctx context.Context, projectID int64) ([]model.Integration, error) {
	return nil, nil
}

type fakeIngestService struct {
	lastParams service.IngestParams
	batch      *service.BatchResult
}

func (f *fakeIngestService) Ingest(ctx context.Context, params service.IngestParams) (*service.IngestResult, error) {
	f.lastParams = params
	return &service.IngestResult{
		Event: &model.InboundEvent{ID: 12345, ExternalID: params.Normalized.ExternalID},
	}, nil
}

func (f *fakeIngestService) ImportAnalyticsBatch(ctx context.Context, integration *model.Integration, events []normalize.AnalyticsEvent) (*service.BatchResult, error) {
	if f.batch != nil {
		return f.batch, nil
	}
	return &service.BatchResult{Processed: len(events)}, nil
}

func signPrefixed(timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(payload)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func signPlain(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ = Describe("webhook handlers", func() {
	var (
		router       *gin.Engine
		integrations *fakeIntegrationService
		ingest       *fakeIngestService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()

		integrations = &fakeIntegrationService{
			integration: &model.Integration{ID: 123, ProjectID: 77, IsEnabled: true},
		}
		ingest = &fakeIngestService{}

		ticketing := webhook.NewTicketingWebhookHandler(integrations, ingest)
		router.POST("/webhooks/ticketing/:integration_id", ticketing.HandleEvent)

		analytics := webhook.NewAnalyticsWebhookHandler(integrations, ingest)
		router.POST("/webhooks/analytics/:integration_id", analytics.HandleBatch)
	})

	post := func(path string, payload []byte, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(payload))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	Describe("ticketing", func() {
		ticketBody := func(score string) []byte {
			payload, err := json.Marshal(map[string]any{
				"ticket": map[string]any{
					"id": 42,
					"satisfaction_rating": map[string]any{
						"score": score,
					},
				},
			})
			Expect(err).ToNot(HaveOccurred())
			return payload
		}

		It("accepts a signed satisfaction rating", func() {
			payload := ticketBody("good")
			w := post("/webhooks/ticketing/123", payload, map[string]string{
				"X-Webhook-Signature": signPrefixed("1700000000", payload),
				"X-Webhook-Timestamp": "1700000000",
			})

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"inbound_event_id":12345`))

			Expect(ingest.lastParams.SourceType).To(Equal(model.SourceTypeTicketing))
			Expect(ingest.lastParams.Normalized.ExternalID).To(Equal("42"))
			Expect(ingest.lastParams.Normalized.Score).To(HaveValue(Equal(5)))
		})

		It("rejects a bad signature", func() {
			payload := ticketBody("good")
			w := post("/webhooks/ticketing/123", payload, map[string]string{
				"X-Webhook-Signature": "v0=deadbeef",
				"X-Webhook-Timestamp": "1700000000",
			})
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects an unknown integration", func() {
			payload := ticketBody("good")
			w := post("/webhooks/ticketing/999", payload, map[string]string{
				"X-Webhook-Signature": signPrefixed("1700000000", payload),
				"X-Webhook-Timestamp": "1700000000",
			})
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("rejects a disabled integration", func() {
			integrations.disabled = true
			payload := ticketBody("good")
			w := post("/webhooks/ticketing/123", payload, map[string]string{
				"X-Webhook-Signature": signPrefixed("1700000000", payload),
				"X-Webhook-Timestamp": "1700000000",
			})
			Expect(w.Code).To(Equal(http.StatusForbidden))
		})

		It("rejects a non-numeric integration id", func() {
			w := post("/webhooks/ticketing/abc", ticketBody("good"), nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects a payload without a ticket id", func() {
			payload := []byte(`{"ticket":{}}`)
			w := post("/webhooks/ticketing/123", payload, map[string]string{
				"X-Webhook-Signature": signPrefixed("1700000000", payload),
				"X-Webhook-Timestamp": "1700000000",
			})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("analytics", func() {
		It("imports a signed batch and reports counts", func() {
			ingest.batch = &service.BatchResult{Processed: 2, Skipped: 1, CsatResponsesCreated: 2}
			payload := []byte(`{"events":[{"event_name":"a","event_timestamp":1},{"event_name":"b","event_timestamp":2},{"event_name":""}]}`)

			w := post("/webhooks/analytics/123", payload, map[string]string{
				"X-Webhook-Signature": signPlain(payload),
			})

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(MatchJSON(`{"processed":2,"skipped":1,"csat_responses_created":2}`))
		})

		It("rejects an empty batch", func() {
			payload := []byte(`{"events":[]}`)
			w := post("/webhooks/analytics/123", payload, map[string]string{
				"X-Webhook-Signature": signPlain(payload),
			})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects an unsigned batch", func() {
			payload := []byte(`{"events":[{"event_name":"a","event_timestamp":1}]}`)
			w := post("/webhooks/analytics/123", payload, nil)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
