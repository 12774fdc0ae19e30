package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/ezyvet-etl/internal/model"
	"github.com/jwalitptl/ezyvet-etl/internal/repository"
	apperrors "github.com/jwalitptl/ezyvet-etl/pkg/errors"
)

type credentialRepository struct {
	db     *sqlx.DB
	schema string
}

func NewCredentialRepository(db *sqlx.DB, schema string) repository.CredentialRepository {
	return &credentialRepository{db: db, schema: schema}
}

func (r *credentialRepository) GetByLocation(ctx context.Context, locationID int64) (*model.Credential, error) {
	// system_time is selected alongside the row so token-age checks use
	// the database clock, not the caller's.
	query := fmt.Sprintf(`
		SELECT location_id, partner_id, client_id, client_secret,
		       access_token, access_token_create_time,
		       now() AS system_time
		FROM %s.ezy_vet_credentials
		WHERE location_id = $1
	`, r.schema)

	var cred model.Credential
	if err := r.db.GetContext(ctx, &cred, query, locationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.MissingCredentials(locationID)
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	// now() comes back zoned; comparisons against the naive
	// access_token_create_time column need it stripped to UTC.
	cred.SystemTime = cred.SystemTime.UTC()

	return &cred, nil
}

func (r *credentialRepository) UpdateToken(ctx context.Context, locationID int64, token string, createTime time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s.ezy_vet_credentials
		SET access_token = $1, access_token_create_time = $2
		WHERE location_id = $3
	`, r.schema)

	result, err := r.db.ExecContext(ctx, query, token, createTime, locationID)
	if err != nil {
		return fmt.Errorf("failed to update access token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.MissingCredentials(locationID)
	}

	return nil
}
