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
)

type appointmentRepository struct {
	db     *sqlx.DB
	schema string
}

func NewAppointmentRepository(db *sqlx.DB, schema string) repository.AppointmentRepository {
	return &appointmentRepository{db: db, schema: schema}
}

func (r *appointmentRepository) MostRecentModified(ctx context.Context, locationID int64) (time.Time, bool, error) {
	query := fmt.Sprintf(`
		SELECT max(datetime_modified)
		FROM %s.appointments
		WHERE location_id = $1
		AND is_shelter_animal_booking = false
	`, r.schema)

	var latest sql.NullTime
	if err := r.db.GetContext(ctx, &latest, query, locationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to query most recent appointment: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}

	return latest.Time.UTC(), true, nil
}

func (r *appointmentRepository) Upsert(ctx context.Context, rows []model.Appointment) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.appointments (
			location_id, division_id, ezyvet_id, created_at, modified_at,
			active, start_at, type_id, appt_type_id, status_id, appt_status_id,
			description, cancellation_reason, animal_id, consult_id, contact_id,
			sales_resource, resource_id, ownership_id, primary_resource_name,
			sales_resource_name, datetime_created, datetime_modified,
			datetime_start_at, is_medical, first_appt, is_shelter_animal_booking
		) VALUES (
			:location_id, :division_id, :ezyvet_id, :created_at, :modified_at,
			:active, :start_at, :type_id, :appt_type_id, :status_id, :appt_status_id,
			:description, :cancellation_reason, :animal_id, :consult_id, :contact_id,
			:sales_resource, :resource_id, :ownership_id, :primary_resource_name,
			:sales_resource_name, :datetime_created, :datetime_modified,
			:datetime_start_at, :is_medical, :first_appt, :is_shelter_animal_booking
		)
		ON CONFLICT (location_id, ezyvet_id) DO UPDATE SET
			modified_at = EXCLUDED.modified_at,
			active = EXCLUDED.active,
			start_at = EXCLUDED.start_at,
			type_id = EXCLUDED.type_id,
			appt_type_id = EXCLUDED.appt_type_id,
			status_id = EXCLUDED.status_id,
			appt_status_id = EXCLUDED.appt_status_id,
			description = EXCLUDED.description,
			cancellation_reason = EXCLUDED.cancellation_reason,
			animal_id = EXCLUDED.animal_id,
			consult_id = EXCLUDED.consult_id,
			contact_id = EXCLUDED.contact_id,
			sales_resource = EXCLUDED.sales_resource,
			resource_id = EXCLUDED.resource_id,
			ownership_id = EXCLUDED.ownership_id,
			primary_resource_name = EXCLUDED.primary_resource_name,
			sales_resource_name = EXCLUDED.sales_resource_name,
			datetime_modified = EXCLUDED.datetime_modified,
			datetime_start_at = EXCLUDED.datetime_start_at,
			is_medical = EXCLUDED.is_medical
	`, r.schema)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("failed to upsert appointment %d: %w", row.EzyVetID, err)
		}
	}

	return tx.Commit()
}
