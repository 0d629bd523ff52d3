package model

import (
	"encoding/json"
	"time"
)

// IntegrationType represents the category of third-party connection.
type IntegrationType string

const (
	IntegrationTypeTicketing IntegrationType = "ticketing"
	IntegrationTypeChat      IntegrationType = "chat"
	IntegrationTypeAnalytics IntegrationType = "analytics"
	IntegrationTypeAppStore  IntegrationType = "app_store"
)

// Direction describes which way data flows for an integration.
type Direction string

const (
	DirectionInbound       Direction = "inbound"
	DirectionOutbound      Direction = "outbound"
	DirectionBidirectional Direction = "bidirectional"
)

type Integration struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	ProjectID      int64           `json:"project_id"`
	Type           IntegrationType `json:"type"`
	Direction      Direction       `json:"direction"`
	IsEnabled      bool            `json:"is_enabled"`
	// EncryptedCredentials is a sealed blob (AES-GCM via crypto.Keeper);
	// never exposed through the API.
	EncryptedCredentials string          `json:"-"`
	Config               json.RawMessage `json:"config,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	DeletedAt            *time.Time      `json:"deleted_at,omitempty"`
}

// Credentials is the decrypted shape of Integration.EncryptedCredentials.
type Credentials struct {
	WebhookSecret string `json:"webhook_secret,omitempty"`
	APIToken      string `json:"api_token,omitempty"`
	// PublicKeyPEM holds a provider-supplied verification key for
	// RSA-signed notifications.
	PublicKeyPEM string `json:"public_key_pem,omitempty"`
}

// ConnectionConfig is the per-type connection shape stored in Integration.Config.
type ConnectionConfig struct {
	Subdomain  string `json:"subdomain,omitempty"`
	Workspace  string `json:"workspace,omitempty"`
	ProjectKey string `json:"project_key,omitempty"`
	// MomentMappings maps external event names to moment IDs.
	MomentMappings map[string]int64 `json:"moment_mappings,omitempty"`
	// PersonaProperty names the user property whose value selects a persona.
	PersonaProperty string `json:"persona_property,omitempty"`
	// PersonaMappings maps user-property values to persona IDs.
	PersonaMappings map[string]int64 `json:"persona_mappings,omitempty"`
	// ScoreParam names the event parameter carrying the satisfaction value.
	ScoreParam string `json:"score_param,omitempty"`
	// ScoreScale declares the source scale when it differs from the 1-5 canon.
	ScoreScale *ScoreScale `json:"score_scale,omitempty"`
	// AutoCreateTicket enqueues an outbound ticket action for low scores.
	AutoCreateTicket bool `json:"auto_create_ticket,omitempty"`
	// LowScoreThreshold bounds what counts as a low score (default 2).
	LowScoreThreshold int `json:"low_score_threshold,omitempty"`
}

type ScoreScale struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}
