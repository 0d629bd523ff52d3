package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"momentiq.app/pipeline/core/db"
	"momentiq.app/pipeline/internal/model"
)

type integrationStore struct {
	q db.Querier
}

const integrationColumns = `id, organization_id, project_id, type, direction, is_enabled,
	encrypted_credentials, config, created_at, updated_at, deleted_at`

func (s *integrationStore) GetByID(ctx context.Context, id int64) (*model.Integration, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+integrationColumns+`
		FROM integrations
		WHERE id = $1 AND deleted_at IS NULL`, id)

	integration, err := scanIntegration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return integration, nil
}

func (s *integrationStore) Create(ctx context.Context, integration *model.Integration) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO integrations (id, organization_id, project_id, type, direction, is_enabled,
			encrypted_credentials, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`,
		integration.ID,
		integration.OrganizationID,
		integration.ProjectID,
		string(integration.Type),
		string(integration.Direction),
		integration.IsEnabled,
		integration.EncryptedCredentials,
		integration.Config,
	)
	return err
}

func (s *integrationStore) Update(ctx context.Context, integration *model.Integration) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE integrations
		SET direction = $2, is_enabled = $3, config = $4, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`,
		integration.ID,
		string(integration.Direction),
		integration.IsEnabled,
		integration.Config,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *integrationStore) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE integrations SET is_enabled = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *integrationStore) UpdateCredentials(ctx context.Context, id int64, encryptedCredentials string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE integrations SET encrypted_credentials = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id, encryptedCredentials)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *integrationStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE integrations SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *integrationStore) ListByProject(ctx context.Context, projectID int64) ([]model.Integration, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+integrationColumns+`
		FROM integrations
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Integration
	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *integration)
	}
	return result, rows.Err()
}

func scanIntegration(row pgx.Row) (*model.Integration, error) {
	var (
		integration         model.Integration
		integrationType     string
		integrationDirection string
	)
	if err := row.Scan(
		&integration.ID,
		&integration.OrganizationID,
		&integration.ProjectID,
		&integrationType,
		&integrationDirection,
		&integration.IsEnabled,
		&integration.EncryptedCredentials,
		&integration.Config,
		&integration.CreatedAt,
		&integration.UpdatedAt,
		&integration.DeletedAt,
	); err != nil {
		return nil, err
	}
	integration.Type = model.IntegrationType(integrationType)
	integration.Direction = model.Direction(integrationDirection)
	return &integration, nil
}
