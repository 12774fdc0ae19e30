package model

import (
	"time"

	"github.com/google/uuid"
)

// SyncResult summarizes one appointment sync run. It is returned by the
// ops API and published to the message broker.
type SyncResult struct {
	RunID           uuid.UUID  `json:"run_id"`
	LocationID      int64      `json:"location_id"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	RowsLoaded      int        `json:"rows_loaded"`
	RowsDropped     int        `json:"rows_dropped"`
	DurationSeconds float64    `json:"duration_seconds"`
	StartedAt       time.Time  `json:"started_at"`
}
