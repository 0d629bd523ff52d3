package model

import (
	"encoding/json"
	"time"
)

// CsatResponse is the canonical, queryable satisfaction record.
// At most one is created per InboundEvent that resolves to a score;
// rows are immutable after creation.
type CsatResponse struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	MomentID  *int64 `json:"moment_id,omitempty"`
	PersonaID *int64 `json:"persona_id,omitempty"`
	// IntegrationID and InboundEventID are weak back-references:
	// deleting an integration leaves historical responses in place.
	IntegrationID     *int64          `json:"integration_id,omitempty"`
	InboundEventID    *int64          `json:"inbound_event_id,omitempty"`
	ExternalReference string          `json:"external_reference"`
	Score             int             `json:"score"`
	SourceType        SourceType      `json:"source_type"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}
