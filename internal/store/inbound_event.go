package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"momentiq.app/pipeline/core/db"
	"momentiq.app/pipeline/internal/model"
)

type inboundEventStore struct {
	q db.Querier
}

const inboundEventColumns = `id, integration_id, project_id, moment_id, external_id, source_type,
	payload, normalized_score, status, processed_at, created_at`

// CreateOrGet relies on the UNIQUE (integration_id, external_id) constraint:
// the insert is a no-op on conflict and the surviving row is fetched
// afterwards. Run inside a transaction this closes the check-then-insert race
// between concurrent deliveries of the same external event.
func (s *inboundEventStore) CreateOrGet(ctx context.Context, event *model.InboundEvent) (*model.InboundEvent, bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO inbound_events (id, integration_id, project_id, moment_id, external_id,
			source_type, payload, normalized_score, status, processed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (integration_id, external_id) DO NOTHING`,
		event.ID,
		event.IntegrationID,
		event.ProjectID,
		event.MomentID,
		event.ExternalID,
		string(event.SourceType),
		[]byte(event.Payload),
		event.NormalizedScore,
		string(event.Status),
		event.ProcessedAt,
	)
	if err != nil {
		return nil, false, err
	}

	created := tag.RowsAffected() == 1

	existing, err := s.GetByNaturalKey(ctx, event.IntegrationID, event.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return existing, created, nil
}

func (s *inboundEventStore) GetByID(ctx context.Context, id int64) (*model.InboundEvent, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+inboundEventColumns+`
		FROM inbound_events
		WHERE id = $1`, id)
	return scanInboundEvent(row)
}

func (s *inboundEventStore) GetByNaturalKey(ctx context.Context, integrationID int64, externalID string) (*model.InboundEvent, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+inboundEventColumns+`
		FROM inbound_events
		WHERE integration_id = $1 AND external_id = $2`, integrationID, externalID)
	return scanInboundEvent(row)
}

func (s *inboundEventStore) MarkFailed(ctx context.Context, id int64) error {
	// Guarded on RECEIVED so terminal states never regress.
	tag, err := s.q.Exec(ctx, `
		UPDATE inbound_events
		SET status = $2, processed_at = now()
		WHERE id = $1 AND status = $3`,
		id, string(model.EventStatusFailed), string(model.EventStatusReceived))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *inboundEventStore) CountByProject(ctx context.Context, projectID int64) (int64, error) {
	var count int64
	err := s.q.QueryRow(ctx, `
		SELECT count(*) FROM inbound_events WHERE project_id = $1`, projectID).Scan(&count)
	return count, err
}

func scanInboundEvent(row pgx.Row) (*model.InboundEvent, error) {
	var (
		event      model.InboundEvent
		sourceType string
		status     string
		payload    []byte
	)
	if err := row.Scan(
		&event.ID,
		&event.IntegrationID,
		&event.ProjectID,
		&event.MomentID,
		&event.ExternalID,
		&sourceType,
		&payload,
		&event.NormalizedScore,
		&status,
		&event.ProcessedAt,
		&event.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	event.SourceType = model.SourceType(sourceType)
	event.Status = model.EventStatus(status)
	event.Payload = payload
	return &event, nil
}
