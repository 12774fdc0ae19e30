package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/ezyvet-etl/internal/config"
	"github.com/jwalitptl/ezyvet-etl/internal/ezyvet"
	"github.com/jwalitptl/ezyvet-etl/internal/model"
	"github.com/jwalitptl/ezyvet-etl/internal/repository"
	apperrors "github.com/jwalitptl/ezyvet-etl/pkg/errors"
	"github.com/jwalitptl/ezyvet-etl/pkg/logger"
	"github.com/jwalitptl/ezyvet-etl/pkg/messaging"
	"github.com/jwalitptl/ezyvet-etl/pkg/metrics"
)

// descriptionLimit is the widest description the warehouse column holds.
const descriptionLimit = 1999

// API is the slice of the ezyVet client the transform needs.
type API interface {
	Get(ctx context.Context, locationID int64, version, name string, params ezyvet.Params, headers map[string]string) ([]json.RawMessage, error)
	GetDateRange(ctx context.Context, locationID int64, version, name, dateFilterField string, params ezyvet.Params, startDate, endDate *time.Time, days int) ([]json.RawMessage, error)
	GetTranslation(ctx context.Context, locationID int64, version, name string) (map[int64]string, error)
}

// Service normalizes raw ezyVet appointments into warehouse rows.
type Service struct {
	api     API
	repo    repository.AppointmentRepository
	broker  messaging.Broker
	cfg     *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewService creates the transform service. broker and metrics may be
// nil; sync events and counters are skipped then.
func NewService(api API, repo repository.AppointmentRepository, broker messaging.Broker, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &Service{
		api:     api,
		repo:    repo,
		broker:  broker,
		cfg:     cfg,
		logger:  log,
		metrics: m,
	}
}

// Sync pulls appointments modified in the given range, cleans them and
// loads them into the warehouse. With no bounds and no day count the
// range starts at the most recently stored modification timestamp and
// ends now; a single bound plus days derives the other bound. Any
// failing step aborts the whole run; there is no row-level error
// isolation.
func (s *Service) Sync(ctx context.Context, locationID int64, startDate, endDate *time.Time, days int) (*model.SyncResult, error) {
	started := time.Now().UTC()
	runID := uuid.New()
	log := s.logger.WithFields(map[string]interface{}{
		"run_id":      runID.String(),
		"location_id": locationID,
	})

	loc, ok := s.cfg.Location(locationID)
	if !ok {
		return nil, apperrors.Configuration(fmt.Sprintf("location %d has no static table configuration", locationID))
	}

	if startDate == nil && endDate == nil && days <= 0 {
		last, found, err := s.repo.MostRecentModified(ctx, locationID)
		if err != nil {
			return nil, s.fail(ctx, runID, locationID, err)
		}
		if !found {
			return nil, apperrors.NewBadRequest(
				fmt.Sprintf("no stored appointments for location %d; an explicit date range is required", locationID), nil)
		}
		end := time.Now().UTC()
		startDate, endDate = &last, &end
	}

	log.Info("starting appointments load",
		"start_date", fmtDate(startDate), "end_date", fmtDate(endDate), "days", days)

	raws, err := s.fetchAppointments(ctx, locationID, startDate, endDate, days)
	if err != nil {
		return nil, s.fail(ctx, runID, locationID, err)
	}

	result := &model.SyncResult{
		RunID:      runID,
		LocationID: locationID,
		StartDate:  startDate,
		EndDate:    endDate,
		StartedAt:  started,
	}

	if len(raws) == 0 {
		log.Info("no appointments in range")
		result.DurationSeconds = time.Since(started).Seconds()
		s.finish(ctx, result)
		return result, nil
	}

	typeNames, err := s.api.GetTranslation(ctx, locationID, "v1", "appointmenttype")
	if err != nil {
		return nil, s.fail(ctx, runID, locationID, err)
	}
	statusNames, err := s.api.GetTranslation(ctx, locationID, "v1", "appointmentstatus")
	if err != nil {
		return nil, s.fail(ctx, runID, locationID, err)
	}
	resources, err := s.fetchResources(ctx, locationID)
	if err != nil {
		return nil, s.fail(ctx, runID, locationID, err)
	}

	rows, dropped, err := clean(locationID, loc, raws, typeNames, statusNames, resources)
	if err != nil {
		return nil, s.fail(ctx, runID, locationID, err)
	}

	if err := s.repo.Upsert(ctx, rows); err != nil {
		return nil, s.fail(ctx, runID, locationID, err)
	}

	result.RowsLoaded = len(rows)
	result.RowsDropped = dropped
	result.DurationSeconds = time.Since(started).Seconds()

	if s.metrics != nil {
		s.metrics.RowsLoaded.Add(float64(len(rows)))
		s.metrics.RowsDropped.Add(float64(dropped))
		s.metrics.SyncDuration.Observe(result.DurationSeconds)
	}

	log.Info("appointments load complete", "rows_loaded", len(rows), "rows_dropped", dropped)
	s.finish(ctx, result)
	return result, nil
}

func (s *Service) fetchAppointments(ctx context.Context, locationID int64, startDate, endDate *time.Time, days int) ([]model.RawAppointment, error) {
	records, err := s.api.GetDateRange(ctx, locationID, "v2", "appointment", "modified_at",
		ezyvet.Params{"active": true}, startDate, endDate, days)
	if err != nil {
		return nil, err
	}

	out := make([]model.RawAppointment, 0, len(records))
	for _, raw := range records {
		var appt model.RawAppointment
		if err := json.Unmarshal(raw, &appt); err != nil {
			return nil, fmt.Errorf("failed to decode appointment record: %w", err)
		}
		out = append(out, appt)
	}
	return out, nil
}

func (s *Service) fetchResources(ctx context.Context, locationID int64) (map[int64]model.Resource, error) {
	records, err := s.api.Get(ctx, locationID, "v1", "resource", nil, nil)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]model.Resource, len(records))
	for _, raw := range records {
		var res model.Resource
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("failed to decode resource record: %w", err)
		}
		out[res.ID.Int64()] = res
	}
	return out, nil
}

// clean applies the full normalization pipeline: block-out removal,
// translation with raw codes preserved, resource joins, derived
// columns, type coercions and the description truncation.
func clean(locationID int64, loc config.LocationConfig, raws []model.RawAppointment, typeNames, statusNames map[int64]string, resources map[int64]model.Resource) ([]model.Appointment, int, error) {
	blockOut := toSet(loc.BlockOutTypes)
	medical := toSet(loc.MedicalTypes)

	rows := make([]model.Appointment, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		typeID := raw.TypeID.Int64()
		if blockOut[typeID] {
			dropped++
			continue
		}
		statusID := raw.StatusID.Int64()

		row := model.Appointment{
			LocationID:             locationID,
			DivisionID:             loc.DivisionID,
			EzyVetID:               raw.ID.Int64(),
			CreatedAt:              raw.CreatedAt.Int64(),
			ModifiedAt:             raw.ModifiedAt.Int64(),
			StartAt:                raw.StartAt.Int64(),
			Active:                 boolToInt(raw.Active.Bool()),
			TypeName:               translate(typeNames, typeID),
			ApptTypeID:             typeID,
			StatusName:             translate(statusNames, statusID),
			ApptStatusID:           statusID,
			Description:            truncate(raw.Description, descriptionLimit),
			CancellationReason:     raw.CancellationReason,
			AnimalID:               toInt64Ptr(raw.AnimalID),
			ConsultID:              toInt64Ptr(raw.ConsultID),
			ContactID:              toInt64Ptr(raw.ContactID),
			SalesResource:          toInt64Ptr(raw.SalesResource),
			DatetimeCreated:        time.Unix(raw.CreatedAt.Int64(), 0).UTC(),
			DatetimeModified:       time.Unix(raw.ModifiedAt.Int64(), 0).UTC(),
			DatetimeStartAt:        time.Unix(raw.StartAt.Int64(), 0).UTC(),
			IsShelterAnimalBooking: false,
		}

		if medical[typeID] {
			row.IsMedical = 1
		}

		if len(raw.Resources) > 0 {
			resourceID := raw.Resources[0].ID.Int64()
			row.ResourceID = &resourceID

			res, ok := resources[resourceID]
			if !ok {
				return nil, 0, fmt.Errorf("appointment %d references unknown resource %d", row.EzyVetID, resourceID)
			}
			ownership := res.OwnershipID.Int64()
			name := res.Name
			row.OwnershipID = &ownership
			row.PrimaryResourceName = &name
		}

		if row.SalesResource != nil {
			res, ok := resources[*row.SalesResource]
			if !ok {
				return nil, 0, fmt.Errorf("appointment %d references unknown sales resource %d", row.EzyVetID, *row.SalesResource)
			}
			name := res.Name
			row.SalesResourceName = &name
		}

		rows = append(rows, row)
	}
	return rows, dropped, nil
}

func (s *Service) finish(ctx context.Context, result *model.SyncResult) {
	if s.metrics != nil {
		s.metrics.SyncRuns.WithLabelValues("completed").Inc()
	}
	s.publish(ctx, messaging.ChannelSyncCompleted, result)
}

func (s *Service) fail(ctx context.Context, runID uuid.UUID, locationID int64, err error) error {
	if s.metrics != nil {
		s.metrics.SyncRuns.WithLabelValues("failed").Inc()
	}
	s.publish(ctx, messaging.ChannelSyncFailed, map[string]interface{}{
		"run_id":      runID.String(),
		"location_id": locationID,
		"error":       err.Error(),
	})
	return err
}

func (s *Service) publish(ctx context.Context, channel string, payload interface{}) {
	if s.broker == nil {
		return
	}
	msg := messaging.Message{Type: channel, Payload: payload}
	if err := s.broker.Publish(ctx, channel, msg); err != nil {
		s.logger.Error(err, "failed to publish sync event", "channel", channel)
	}
}

// translate maps an ID to its display name, keeping the numeric form
// when the lookup has no entry for it.
func translate(names map[int64]string, id int64) string {
	if name, ok := names[id]; ok {
		return name
	}
	return strconv.FormatInt(id, 10)
}

func toSet(ids []int64) map[int64]bool {
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func toInt64Ptr(v *model.FlexInt) *int64 {
	if v == nil {
		return nil
	}
	n := v.Int64()
	return &n
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return "open"
	}
	return t.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
