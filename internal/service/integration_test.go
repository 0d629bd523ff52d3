package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"momentiq.app/pipeline/common/crypto"
	"momentiq.app/pipeline/internal/model"
	"momentiq.app/pipeline/internal/service"
	"momentiq.app/pipeline/internal/store"
)

var _ = Describe("IntegrationService", func() {
	var (
		integrations *mockIntegrationStore
		keeper       *crypto.Keeper
		svc          service.IntegrationService
		ctx          context.Context
	)

	const webhookSecret = "s3cret"

	seal := func(creds model.Credentials) string {
		encoded, err := json.Marshal(creds)
		Expect(err).ToNot(HaveOccurred())
		sealed, err := keeper.Seal(encoded)
		Expect(err).ToNot(HaveOccurred())
		return sealed
	}

	BeforeEach(func() {
		var err error
		keeper, err = crypto.NewKeeper(strings.Repeat("ab", 32))
		Expect(err).ToNot(HaveOccurred())

		integrations = &mockIntegrationStore{}
		svc = service.NewIntegrationService(integrations, keeper, 5*time.Minute)
		ctx = context.Background()
	})

	stored := func(in model.Integration) {
		integrations.getByIDFn = func(ctx context.Context, id int64) (*model.Integration, error) {
			if id != in.ID {
				return nil, store.ErrNotFound
			}
			copied := in
			return &copied, nil
		}
	}

	Describe("GetActive", func() {
		It("returns sentinel errors for missing, deleted, and disabled integrations", func() {
			_, err := svc.GetActive(ctx, 404)
			Expect(err).To(MatchError(service.ErrIntegrationNotFound))

			deletedAt := time.Now()
			stored(model.Integration{ID: 1, IsEnabled: true, DeletedAt: &deletedAt})
			_, err = svc.GetActive(ctx, 1)
			Expect(err).To(MatchError(service.ErrIntegrationNotFound))

			stored(model.Integration{ID: 1, IsEnabled: false})
			_, err = svc.GetActive(ctx, 1)
			Expect(err).To(MatchError(service.ErrIntegrationDisabled))
		})

		It("returns an enabled integration", func() {
			stored(model.Integration{ID: 1, IsEnabled: true})
			in, err := svc.GetActive(ctx, 1)
			Expect(err).ToNot(HaveOccurred())
			Expect(in.ID).To(Equal(int64(1)))
		})
	})

	Describe("Authorize", func() {
		payload := []byte(`{"ticket":{"id":42}}`)

		sign := func(message string) string {
			mac := hmac.New(sha256.New, []byte(webhookSecret))
			mac.Write([]byte(message))
			return hex.EncodeToString(mac.Sum(nil))
		}

		BeforeEach(func() {
			stored(model.Integration{
				ID:                   1,
				IsEnabled:            true,
				Type:                 model.IntegrationTypeTicketing,
				EncryptedCredentials: seal(model.Credentials{WebhookSecret: webhookSecret}),
			})
		})

		It("accepts a valid ticketing signature", func() {
			digest := sign("v0:1700000000:" + string(payload))
			in, err := svc.Authorize(ctx, 1, model.SourceTypeTicketing, payload, service.WebhookSignature{
				Signature: "v0=" + digest,
				Timestamp: "1700000000",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(in.ID).To(Equal(int64(1)))
		})

		It("rejects an invalid ticketing signature", func() {
			_, err := svc.Authorize(ctx, 1, model.SourceTypeTicketing, payload, service.WebhookSignature{
				Signature: "v0=deadbeef",
				Timestamp: "1700000000",
			})
			Expect(err).To(MatchError(service.ErrSignatureInvalid))
		})

		It("verifies analytics requests with a plain digest", func() {
			_, err := svc.Authorize(ctx, 1, model.SourceTypeAnalytics, payload, service.WebhookSignature{
				Signature: sign(string(payload)),
			})
			Expect(err).ToNot(HaveOccurred())
		})

		It("rejects requests when no secret is configured", func() {
			stored(model.Integration{ID: 1, IsEnabled: true, EncryptedCredentials: seal(model.Credentials{})})
			_, err := svc.Authorize(ctx, 1, model.SourceTypeAnalytics, payload, service.WebhookSignature{
				Signature: sign(string(payload)),
			})
			Expect(err).To(MatchError(service.ErrSignatureInvalid))
		})

		It("skips digest verification for app-store notifications", func() {
			in, err := svc.Authorize(ctx, 1, model.SourceTypeAppStore, payload, service.WebhookSignature{})
			Expect(err).ToNot(HaveOccurred())
			Expect(in.ID).To(Equal(int64(1)))
		})

		It("propagates integration resolution errors", func() {
			_, err := svc.Authorize(ctx, 404, model.SourceTypeTicketing, payload, service.WebhookSignature{})
			Expect(err).To(MatchError(service.ErrIntegrationNotFound))
		})
	})

	Describe("Connect", func() {
		It("seals credentials so the store never sees plaintext", func() {
			var persisted *model.Integration
			integrations.createFn = func(ctx context.Context, in *model.Integration) error {
				persisted = in
				return nil
			}

			in, err := svc.Connect(ctx, service.ConnectParams{
				OrganizationID: 5,
				ProjectID:      77,
				Type:           model.IntegrationTypeTicketing,
				Credentials:    model.Credentials{WebhookSecret: webhookSecret},
				Config:         &model.ConnectionConfig{Subdomain: "acme"},
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(in.ID).ToNot(BeZero())
			Expect(in.IsEnabled).To(BeTrue())
			Expect(in.Direction).To(Equal(model.DirectionInbound))

			Expect(persisted.EncryptedCredentials).ToNot(ContainSubstring(webhookSecret))
			opened, err := keeper.Open(persisted.EncryptedCredentials)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(opened)).To(ContainSubstring(webhookSecret))
		})

		It("requires a project and a type", func() {
			_, err := svc.Connect(ctx, service.ConnectParams{ProjectID: 77})
			Expect(err).To(HaveOccurred())
			Expect(integrations.createCalls).To(BeZero())
		})
	})

	Describe("RotateCredentials", func() {
		It("re-seals and persists the new credentials", func() {
			stored(model.Integration{ID: 1, IsEnabled: true, EncryptedCredentials: seal(model.Credentials{WebhookSecret: "old"})})

			var rotated string
			integrations.updateCredentialsFn = func(ctx context.Context, id int64, encrypted string) error {
				rotated = encrypted
				return nil
			}

			Expect(svc.RotateCredentials(ctx, 1, model.Credentials{WebhookSecret: "new"})).To(Succeed())

			opened, err := keeper.Open(rotated)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(opened)).To(ContainSubstring("new"))
		})

		It("refuses rotation on a missing integration", func() {
			err := svc.RotateCredentials(ctx, 404, model.Credentials{})
			Expect(err).To(MatchError(service.ErrIntegrationNotFound))
		})
	})

	Describe("Disconnect", func() {
		It("soft-deletes through the store", func() {
			var deleted int64
			integrations.deleteFn = func(ctx context.Context, id int64) error {
				deleted = id
				return nil
			}
			Expect(svc.Disconnect(ctx, 9)).To(Succeed())
			Expect(deleted).To(Equal(int64(9)))
		})

		It("maps a missing row to the sentinel", func() {
			integrations.deleteFn = func(ctx context.Context, id int64) error {
				return store.ErrNotFound
			}
			Expect(svc.Disconnect(ctx, 9)).To(MatchError(service.ErrIntegrationNotFound))
		})
	})

	Describe("Config", func() {
		It("decodes the connection config", func() {
			cfg, err := svc.Config(&model.Integration{Config: json.RawMessage(`{"subdomain":"acme","low_score_threshold":3}`)})
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg.Subdomain).To(Equal("acme"))
			Expect(cfg.LowScoreThreshold).To(Equal(3))
		})

		It("returns the zero config for an empty blob", func() {
			cfg, err := svc.Config(&model.Integration{})
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg).To(Equal(model.ConnectionConfig{}))
		})
	})
})
