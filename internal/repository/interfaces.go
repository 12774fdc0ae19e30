package repository

import (
	"context"
	"time"

	"github.com/jwalitptl/ezyvet-etl/internal/model"
)

// CredentialRepository is the capability the API client needs from the
// credential store.
type CredentialRepository interface {
	// GetByLocation returns the credential record for a location along
	// with the database clock observed at read time. Missing records
	// surface as an errors.ErrMissingCredentials AppError.
	GetByLocation(ctx context.Context, locationID int64) (*model.Credential, error)
	// UpdateToken persists a refreshed bearer token and its creation
	// time. Plain read-then-write; concurrent refreshers race and the
	// last write wins.
	UpdateToken(ctx context.Context, locationID int64, token string, createTime time.Time) error
}

// AppointmentRepository is the warehouse side of the appointments ETL.
type AppointmentRepository interface {
	// MostRecentModified returns the modification timestamp of the
	// newest stored appointment for a location, excluding shelter
	// animal bookings. ok is false when nothing has been loaded yet.
	MostRecentModified(ctx context.Context, locationID int64) (time.Time, bool, error)
	// Upsert writes cleaned rows keyed by (location_id, ezyvet_id).
	Upsert(ctx context.Context, rows []model.Appointment) error
}
