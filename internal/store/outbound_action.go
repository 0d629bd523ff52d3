package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"momentiq.app/pipeline/core/db"
	"momentiq.app/pipeline/internal/model"
)

type outboundActionStore struct {
	q db.Querier
}

const outboundActionColumns = `id, integration_id, moment_id, csat_response_id, recommendation_id,
	action_type, payload, status, created_at, updated_at`

func (s *outboundActionStore) Create(ctx context.Context, action *model.OutboundAction) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO outbound_actions (id, integration_id, moment_id, csat_response_id,
			recommendation_id, action_type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`,
		action.ID,
		action.IntegrationID,
		action.MomentID,
		action.CsatResponseID,
		action.RecommendationID,
		string(action.ActionType),
		[]byte(action.Payload),
		string(action.Status),
	)
	return err
}

func (s *outboundActionStore) GetByID(ctx context.Context, id int64) (*model.OutboundAction, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+outboundActionColumns+`
		FROM outbound_actions
		WHERE id = $1`, id)
	return scanOutboundAction(row)
}

func (s *outboundActionStore) UpdateStatus(ctx context.Context, id int64, status model.ActionStatus) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE outbound_actions SET status = $2, updated_at = now()
		WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *outboundActionStore) ListByIntegration(ctx context.Context, integrationID int64) ([]model.OutboundAction, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+outboundActionColumns+`
		FROM outbound_actions
		WHERE integration_id = $1
		ORDER BY created_at DESC`, integrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.OutboundAction
	for rows.Next() {
		action, err := scanOutboundAction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *action)
	}
	return result, rows.Err()
}

func scanOutboundAction(row pgx.Row) (*model.OutboundAction, error) {
	var (
		action     model.OutboundAction
		actionType string
		status     string
		payload    []byte
	)
	if err := row.Scan(
		&action.ID,
		&action.IntegrationID,
		&action.MomentID,
		&action.CsatResponseID,
		&action.RecommendationID,
		&actionType,
		&payload,
		&status,
		&action.CreatedAt,
		&action.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	action.ActionType = model.ActionType(actionType)
	action.Status = model.ActionStatus(status)
	action.Payload = payload
	return &action, nil
}
