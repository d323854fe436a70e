package common

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidDate is returned for query dates that are neither RFC 3339 nor YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date")

// ParseDate reads an optional RFC 3339 or YYYY-MM-DD query value. Empty input yields nil.
func ParseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, ErrInvalidDate
}

// ParseDateRange reads the from and to query values. A date-only "to" is
// inclusive, so it is moved to the start of the following day.
func ParseDateRange(from, to string) (*time.Time, *time.Time, error) {
	start, err := ParseDate(from)
	if err != nil {
		return nil, nil, BadRequest("from must be a date", err)
	}
	end, err := ParseDate(to)
	if err != nil {
		return nil, nil, BadRequest("to must be a date", err)
	}
	if end != nil && len(strings.TrimSpace(to)) == len(time.DateOnly) {
		next := end.AddDate(0, 0, 1)
		end = &next
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, BadRequest("from must not be after to", nil)
	}
	return start, end, nil
}
