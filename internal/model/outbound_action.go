package model

import (
	"encoding/json"
	"time"
)

// ActionType is the kind of action taken against an external system.
type ActionType string

const (
	ActionTypeCreateTicket  ActionType = "create_ticket"
	ActionTypeNotification  ActionType = "notification"
	ActionTypeFollowUpEmail ActionType = "follow_up_email"
)

// ActionStatus tracks delivery of an outbound action.
type ActionStatus string

const (
	ActionStatusPending   ActionStatus = "PENDING"
	ActionStatusAttempted ActionStatus = "ATTEMPTED"
	ActionStatusConfirmed ActionStatus = "CONFIRMED"
	ActionStatusFailed    ActionStatus = "FAILED"
)

// OutboundAction records an action taken against an external system in
// response to a CSAT event (e.g., an auto-created support ticket).
type OutboundAction struct {
	ID               int64           `json:"id"`
	IntegrationID    int64           `json:"integration_id"`
	MomentID         *int64          `json:"moment_id,omitempty"`
	CsatResponseID   *int64          `json:"csat_response_id,omitempty"`
	RecommendationID *int64          `json:"recommendation_id,omitempty"`
	ActionType       ActionType      `json:"action_type"`
	Payload          json.RawMessage `json:"payload"`
	Status           ActionStatus    `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
