package model

import (
	"encoding/json"
	"time"
)

// EventStatus tracks an inbound event through its lifecycle.
// Transitions are monotonic: RECEIVED -> PROCESSED or RECEIVED -> FAILED.
type EventStatus string

const (
	EventStatusReceived  EventStatus = "RECEIVED"
	EventStatusProcessed EventStatus = "PROCESSED"
	EventStatusFailed    EventStatus = "FAILED"
)

// SourceType identifies where an inbound event came from.
type SourceType string

const (
	SourceTypeTicketing SourceType = "ticketing"
	SourceTypeAnalytics SourceType = "analytics"
	SourceTypeAppStore  SourceType = "app_store"
	SourceTypeWidget    SourceType = "widget"
)

// InboundEvent is the immutable record of one received external event.
// The pair (IntegrationID, ExternalID) is unique: a second delivery of the
// same external event is a no-op, not a duplicate insert. Rows are never
// deleted; they are the pipeline's audit trail.
type InboundEvent struct {
	ID            int64      `json:"id"`
	IntegrationID int64      `json:"integration_id"`
	ProjectID     int64      `json:"project_id"`
	MomentID      *int64     `json:"moment_id,omitempty"`
	ExternalID    string     `json:"external_id"`
	SourceType    SourceType `json:"source_type"`
	// Payload is the raw provider payload, stored verbatim for audit/replay.
	Payload         json.RawMessage `json:"payload"`
	NormalizedScore *int            `json:"normalized_score,omitempty"`
	Status          EventStatus     `json:"status"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
