package services

import (
	"fmt"
	"strings"
	"time"
)

// DateTimeLocalLayout is the value format of an HTML datetime-local input.
const DateTimeLocalLayout = "2006-01-02T15:04"

// ParseScheduledTime parses a stored scheduled_time. Accepted formats, in
// order:
//
//	RFC 3339, e.g. 2025-06-01T18:30:00Z or 2025-06-01T18:30:00.5+02:00
//	datetime-local, e.g. 2025-06-01T18:30, read in loc (UTC when nil)
//
// Anything else fails with ErrInvalidTimestamp.
func ParseScheduledTime(value string, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(DateTimeLocalLayout, v, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q is neither RFC 3339 nor %s", ErrInvalidTimestamp, value, DateTimeLocalLayout)
}
