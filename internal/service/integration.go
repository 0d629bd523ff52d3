package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"momentiq.app/pipeline/common/crypto"
	"momentiq.app/pipeline/common/id"
	"momentiq.app/pipeline/internal/model"
	"momentiq.app/pipeline/internal/signature"
	"momentiq.app/pipeline/internal/store"
)

var (
	ErrIntegrationNotFound = errors.New("integration not found")
	ErrIntegrationDisabled = errors.New("integration is disabled")
	ErrSignatureInvalid    = errors.New("signature verification failed")
)

// WebhookSignature carries the signature material extracted from a webhook
// request's headers.
type WebhookSignature struct {
	Signature string
	Timestamp string
}

// ConnectParams describes a new integration to be connected.
type ConnectParams struct {
	OrganizationID int64
	ProjectID      int64
	Type           model.IntegrationType
	Direction      model.Direction
	Credentials    model.Credentials
	Config         *model.ConnectionConfig
}

// IntegrationService resolves integrations, holds the credential sealing key,
// and authenticates inbound webhooks against the scheme each source uses.
type IntegrationService interface {
	// GetActive resolves an integration that is neither deleted nor disabled.
	GetActive(ctx context.Context, integrationID int64) (*model.Integration, error)

	// Authorize resolves the integration and verifies the request signature
	// with the scheme appropriate for the source. App-store notifications
	// authenticate through their JWS envelope instead, so for that source
	// only the integration itself is checked.
	Authorize(ctx context.Context, integrationID int64, source model.SourceType, payload []byte, sig WebhookSignature) (*model.Integration, error)

	// Config decodes the integration's connection config.
	Config(integration *model.Integration) (model.ConnectionConfig, error)

	Connect(ctx context.Context, params ConnectParams) (*model.Integration, error)
	RotateCredentials(ctx context.Context, integrationID int64, creds model.Credentials) error
	SetEnabled(ctx context.Context, integrationID int64, enabled bool) error
	// Disconnect soft-deletes; historical events and responses are kept.
	Disconnect(ctx context.Context, integrationID int64) error
	ListByProject(ctx context.Context, projectID int64) ([]model.Integration, error)
}

type integrationService struct {
	integrations store.IntegrationStore
	keeper       *crypto.Keeper
	tolerance    time.Duration
}

func NewIntegrationService(integrations store.IntegrationStore, keeper *crypto.Keeper, timestampTolerance time.Duration) IntegrationService {
	if timestampTolerance <= 0 {
		timestampTolerance = signature.DefaultTimestampTolerance
	}
	return &integrationService{
		integrations: integrations,
		keeper:       keeper,
		tolerance:    timestampTolerance,
	}
}

func (s *integrationService) GetActive(ctx context.Context, integrationID int64) (*model.Integration, error) {
	integration, err := s.integrations.GetByID(ctx, integrationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("fetching integration: %w", err)
	}
	if integration.DeletedAt != nil {
		return nil, ErrIntegrationNotFound
	}
	if !integration.IsEnabled {
		return nil, ErrIntegrationDisabled
	}
	return integration, nil
}

func (s *integrationService) Authorize(ctx context.Context, integrationID int64, source model.SourceType, payload []byte, sig WebhookSignature) (*model.Integration, error) {
	integration, err := s.GetActive(ctx, integrationID)
	if err != nil {
		return nil, err
	}

	if source == model.SourceTypeAppStore {
		return integration, nil
	}

	creds, err := s.decryptCredentials(integration)
	if err != nil {
		return nil, err
	}

	if !s.verify(source, creds, payload, sig) {
		slog.WarnContext(ctx, "webhook signature rejected", "source_type", string(source))
		return nil, ErrSignatureInvalid
	}

	return integration, nil
}

// verify dispatches to the signature scheme the source's provider uses. A
// provider-supplied public key takes precedence over shared-secret schemes.
func (s *integrationService) verify(source model.SourceType, creds model.Credentials, payload []byte, sig WebhookSignature) bool {
	if creds.PublicKeyPEM != "" {
		return signature.VerifyRSASignature(payload, sig.Signature, creds.PublicKeyPEM)
	}
	if creds.WebhookSecret == "" {
		return false
	}

	switch source {
	case model.SourceTypeTicketing:
		return signature.VerifyPrefixedHMAC(payload, sig.Timestamp, sig.Signature, creds.WebhookSecret)
	case model.SourceTypeWidget:
		return signature.VerifyTimestampedHMAC(payload, sig.Signature, creds.WebhookSecret, time.Now(), s.tolerance)
	default:
		return signature.VerifyPlainHMAC(payload, sig.Signature, creds.WebhookSecret)
	}
}

func (s *integrationService) Config(integration *model.Integration) (model.ConnectionConfig, error) {
	var cfg model.ConnectionConfig
	if len(integration.Config) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(integration.Config, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding integration config: %w", err)
	}
	return cfg, nil
}

func (s *integrationService) Connect(ctx context.Context, params ConnectParams) (*model.Integration, error) {
	if params.ProjectID == 0 || params.Type == "" {
		return nil, fmt.Errorf("project_id and type are required")
	}

	sealed, err := s.sealCredentials(params.Credentials)
	if err != nil {
		return nil, err
	}

	direction := params.Direction
	if direction == "" {
		direction = model.DirectionInbound
	}

	integration := &model.Integration{
		ID:                   id.New(),
		OrganizationID:       params.OrganizationID,
		ProjectID:            params.ProjectID,
		Type:                 params.Type,
		Direction:            direction,
		IsEnabled:            true,
		EncryptedCredentials: sealed,
	}

	if params.Config != nil {
		encoded, err := json.Marshal(params.Config)
		if err != nil {
			return nil, fmt.Errorf("encoding integration config: %w", err)
		}
		integration.Config = encoded
	}

	if err := s.integrations.Create(ctx, integration); err != nil {
		return nil, fmt.Errorf("creating integration: %w", err)
	}

	slog.InfoContext(ctx, "integration connected", "type", string(params.Type))
	return integration, nil
}

func (s *integrationService) RotateCredentials(ctx context.Context, integrationID int64, creds model.Credentials) error {
	if _, err := s.GetActive(ctx, integrationID); err != nil {
		return err
	}

	sealed, err := s.sealCredentials(creds)
	if err != nil {
		return err
	}

	if err := s.integrations.UpdateCredentials(ctx, integrationID, sealed); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrIntegrationNotFound
		}
		return fmt.Errorf("rotating credentials: %w", err)
	}

	slog.InfoContext(ctx, "integration credentials rotated")
	return nil
}

func (s *integrationService) SetEnabled(ctx context.Context, integrationID int64, enabled bool) error {
	if err := s.integrations.SetEnabled(ctx, integrationID, enabled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrIntegrationNotFound
		}
		return fmt.Errorf("updating integration: %w", err)
	}
	return nil
}

func (s *integrationService) Disconnect(ctx context.Context, integrationID int64) error {
	if err := s.integrations.Delete(ctx, integrationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrIntegrationNotFound
		}
		return fmt.Errorf("disconnecting integration: %w", err)
	}
	slog.InfoContext(ctx, "integration disconnected")
	return nil
}

func (s *integrationService) ListByProject(ctx context.Context, projectID int64) ([]model.Integration, error) {
	return s.integrations.ListByProject(ctx, projectID)
}

func (s *integrationService) sealCredentials(creds model.Credentials) (string, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("encoding credentials: %w", err)
	}
	sealed, err := s.keeper.Seal(plaintext)
	if err != nil {
		return "", fmt.Errorf("sealing credentials: %w", err)
	}
	return sealed, nil
}

func (s *integrationService) decryptCredentials(integration *model.Integration) (model.Credentials, error) {
	var creds model.Credentials
	if integration.EncryptedCredentials == "" {
		return creds, nil
	}
	plaintext, err := s.keeper.Open(integration.EncryptedCredentials)
	if err != nil {
		return creds, fmt.Errorf("opening credentials: %w", err)
	}
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return creds, fmt.Errorf("decoding credentials: %w", err)
	}
	return creds, nil
}
