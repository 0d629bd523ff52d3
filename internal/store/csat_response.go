package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"momentiq.app/pipeline/core/db"
	"momentiq.app/pipeline/internal/model"
)

type csatResponseStore struct {
	q db.Querier
}

const csatResponseColumns = `id, project_id, moment_id, persona_id, integration_id, inbound_event_id,
	external_reference, score, source_type, metadata, created_at`

func (s *csatResponseStore) Create(ctx context.Context, response *model.CsatResponse) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO csat_responses (id, project_id, moment_id, persona_id, integration_id,
			inbound_event_id, external_reference, score, source_type, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())`,
		response.ID,
		response.ProjectID,
		response.MomentID,
		response.PersonaID,
		response.IntegrationID,
		response.InboundEventID,
		response.ExternalReference,
		response.Score,
		string(response.SourceType),
		[]byte(response.Metadata),
	)
	return err
}

func (s *csatResponseStore) GetByID(ctx context.Context, id int64) (*model.CsatResponse, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+csatResponseColumns+`
		FROM csat_responses
		WHERE id = $1`, id)
	return scanCsatResponse(row)
}

func (s *csatResponseStore) GetByInboundEvent(ctx context.Context, inboundEventID int64) (*model.CsatResponse, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+csatResponseColumns+`
		FROM csat_responses
		WHERE inbound_event_id = $1`, inboundEventID)
	return scanCsatResponse(row)
}

func (s *csatResponseStore) ListByProject(ctx context.Context, projectID int64, limit int32) ([]model.CsatResponse, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+csatResponseColumns+`
		FROM csat_responses
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.CsatResponse
	for rows.Next() {
		response, err := scanCsatResponse(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *response)
	}
	return result, rows.Err()
}

func scanCsatResponse(row pgx.Row) (*model.CsatResponse, error) {
	var (
		response   model.CsatResponse
		sourceType string
		metadata   []byte
	)
	if err := row.Scan(
		&response.ID,
		&response.ProjectID,
		&response.MomentID,
		&response.PersonaID,
		&response.IntegrationID,
		&response.InboundEventID,
		&response.ExternalReference,
		&response.Score,
		&sourceType,
		&metadata,
		&response.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	response.SourceType = model.SourceType(sourceType)
	response.Metadata = metadata
	return &response, nil
}
