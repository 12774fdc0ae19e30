package sync

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/ezyvet-etl/internal/model"
	apperrors "github.com/jwalitptl/ezyvet-etl/pkg/errors"
)

// Syncer runs an appointments sync for one location.
type Syncer interface {
	Sync(ctx context.Context, locationID int64, startDate, endDate *time.Time, days int) (*model.SyncResult, error)
}

type Handler struct {
	service Syncer
}

func NewHandler(service Syncer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/sync/:location_id", h.TriggerSync)
}

// TriggerSync runs an appointments sync for a location. start_date and
// end_date query parameters accept RFC3339 or plain dates; days widens
// a single bound into a range. Everything omitted means "since the
// last loaded row".
func (h *Handler) TriggerSync(c *gin.Context) {
	locationID, err := strconv.ParseInt(c.Param("location_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid location ID"})
		return
	}

	var startDate, endDate *time.Time
	if s := c.Query("start_date"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}
		startDate = &t
	}
	if s := c.Query("end_date"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}
		endDate = &t
	}

	days := 0
	if s := c.Query("days"); s != "" {
		days, err = strconv.Atoi(s)
		if err != nil || days < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "days must be a positive integer"})
			return
		}
	}

	result, err := h.service.Sync(c.Request.Context(), locationID, startDate, endDate, days)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": result})
}

func statusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrBadRequest, apperrors.ErrInvalidDateFilter, apperrors.ErrConfiguration:
		return http.StatusBadRequest
	case apperrors.ErrMissingCredentials, apperrors.ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q, want RFC3339 or YYYY-MM-DD", s)
}
