package ezyvet

import (
	"time"

	apperrors "github.com/jwalitptl/ezyvet-etl/pkg/errors"
)

// BuildDateFilter translates an optional (start, end, days) triple into
// the structured filter expression the API understands.
//
// An end date with no time-of-day component is normalized to 23:59:59
// so the full day is included. When days is given alongside exactly one
// bound, the other bound is derived from it. Giving days with both
// bounds, or neither bound at all, is an error raised before any
// network call.
//
// Timestamps are Unix epoch seconds with the wall clock read as UTC,
// whatever zone the caller's time values carry.
func BuildDateFilter(field string, startDate, endDate *time.Time, days int) (Params, error) {
	if endDate != nil {
		e := *endDate
		if e.Hour()+e.Minute()+e.Second() == 0 {
			e = time.Date(e.Year(), e.Month(), e.Day(), 23, 59, 59, 0, time.UTC)
		}
		endDate = &e
	}

	switch {
	case startDate != nil && endDate == nil:
		if days > 0 {
			end := startDate.AddDate(0, 0, days)
			return Params{field: GtLte(epochUTC(*startDate), epochUTC(end))}, nil
		}
		return Params{field: Gt(epochUTC(*startDate))}, nil

	case endDate != nil && startDate == nil:
		if days > 0 {
			start := endDate.AddDate(0, 0, -days)
			return Params{field: GtLte(epochUTC(start), epochUTC(*endDate))}, nil
		}
		return Params{field: Lt(epochUTC(*endDate))}, nil

	case startDate != nil && endDate != nil:
		if days > 0 {
			return nil, apperrors.InvalidDateFilter("cannot set start date, end date, and days together")
		}
		return Params{field: GtLte(epochUTC(*startDate), epochUTC(*endDate))}, nil

	default:
		return nil, apperrors.InvalidDateFilter("either a start or an end date is required")
	}
}

// epochUTC reads t's wall clock as UTC and returns epoch seconds.
func epochUTC(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC).Unix()
}
