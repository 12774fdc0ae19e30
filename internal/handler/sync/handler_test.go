package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/ezyvet-etl/internal/model"
	apperrors "github.com/jwalitptl/ezyvet-etl/pkg/errors"
)

type fakeSyncer struct {
	locationID int64
	startDate  *time.Time
	endDate    *time.Time
	days       int

	result *model.SyncResult
	err    error
}

func (f *fakeSyncer) Sync(ctx context.Context, locationID int64, startDate, endDate *time.Time, days int) (*model.SyncResult, error) {
	f.locationID = locationID
	f.startDate = startDate
	f.endDate = endDate
	f.days = days
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func setupRouter(syncer *fakeSyncer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(syncer).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestTriggerSync(t *testing.T) {
	syncer := &fakeSyncer{result: &model.SyncResult{
		RunID:      uuid.New(),
		LocationID: 3,
		RowsLoaded: 12,
	}}
	r := setupRouter(syncer)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/3?start_date=2021-01-01&end_date=2021-01-02T06:30:00Z", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"success"`)
	assert.Contains(t, w.Body.String(), `"rows_loaded":12`)

	assert.Equal(t, int64(3), syncer.locationID)
	require.NotNil(t, syncer.startDate)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), *syncer.startDate)
	require.NotNil(t, syncer.endDate)
	assert.Equal(t, time.Date(2021, 1, 2, 6, 30, 0, 0, time.UTC), *syncer.endDate)
}

func TestTriggerSyncOmittedDates(t *testing.T) {
	syncer := &fakeSyncer{result: &model.SyncResult{}}
	r := setupRouter(syncer)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/3", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, syncer.startDate)
	assert.Nil(t, syncer.endDate)
}

func TestTriggerSyncDays(t *testing.T) {
	syncer := &fakeSyncer{result: &model.SyncResult{}}
	r := setupRouter(syncer)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/3?start_date=2021-01-01&days=5", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, syncer.days)
	require.NotNil(t, syncer.startDate)
	assert.Nil(t, syncer.endDate)
}

func TestTriggerSyncInvalidDays(t *testing.T) {
	r := setupRouter(&fakeSyncer{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/3?days=-2", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "days must be")
}

func TestTriggerSyncInvalidLocation(t *testing.T) {
	r := setupRouter(&fakeSyncer{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/clinic-a", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid location ID")
}

func TestTriggerSyncInvalidDate(t *testing.T) {
	r := setupRouter(&fakeSyncer{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/3?start_date=yesterday", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unrecognized date")
}

func TestTriggerSyncErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", apperrors.NewBadRequest("explicit range required", nil), http.StatusBadRequest},
		{"invalid filter", apperrors.InvalidDateFilter("no bounds"), http.StatusBadRequest},
		{"missing location config", apperrors.Configuration("location 9 not configured"), http.StatusBadRequest},
		{"missing credentials", apperrors.MissingCredentials(9), http.StatusNotFound},
		{"internal", apperrors.NewInternal(assert.AnError), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouter(&fakeSyncer{err: tc.err})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/9", nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
			assert.Contains(t, w.Body.String(), `"status":"error"`)
		})
	}
}
