package store

import (
	"context"
	"errors"

	"momentiq.app/pipeline/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// IntegrationStore defines the contract for integration data access
type IntegrationStore interface {
	GetByID(ctx context.Context, id int64) (*model.Integration, error)
	Create(ctx context.Context, integration *model.Integration) error
	Update(ctx context.Context, integration *model.Integration) error
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	// UpdateCredentials replaces the sealed credentials blob (rotation).
	UpdateCredentials(ctx context.Context, id int64, encryptedCredentials string) error
	// Delete soft-deletes; historical inbound events and responses are kept.
	Delete(ctx context.Context, id int64) error
	ListByProject(ctx context.Context, projectID int64) ([]model.Integration, error)
}

// InboundEventStore defines the contract for inbound event data access
type InboundEventStore interface {
	// CreateOrGet inserts the event unless one already exists for
	// (integration_id, external_id); returns the surviving row and whether
	// this call created it. First delivery wins.
	CreateOrGet(ctx context.Context, event *model.InboundEvent) (*model.InboundEvent, bool, error)
	GetByID(ctx context.Context, id int64) (*model.InboundEvent, error)
	GetByNaturalKey(ctx context.Context, integrationID int64, externalID string) (*model.InboundEvent, error)
	// MarkFailed transitions RECEIVED -> FAILED; terminal states never regress.
	MarkFailed(ctx context.Context, id int64) error
	CountByProject(ctx context.Context, projectID int64) (int64, error)
}

// CsatResponseStore defines the contract for canonical response data access
type CsatResponseStore interface {
	Create(ctx context.Context, response *model.CsatResponse) error
	GetByID(ctx context.Context, id int64) (*model.CsatResponse, error)
	GetByInboundEvent(ctx context.Context, inboundEventID int64) (*model.CsatResponse, error)
	ListByProject(ctx context.Context, projectID int64, limit int32) ([]model.CsatResponse, error)
}

// OutboundActionStore defines the contract for outbound action data access
type OutboundActionStore interface {
	Create(ctx context.Context, action *model.OutboundAction) error
	GetByID(ctx context.Context, id int64) (*model.OutboundAction, error)
	UpdateStatus(ctx context.Context, id int64, status model.ActionStatus) error
	ListByIntegration(ctx context.Context, integrationID int64) ([]model.OutboundAction, error)
}
