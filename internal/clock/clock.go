// Package clock supplies the instant that event deadlines are compared
// against.
package clock

import "time"

// Clock reports the current instant.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock. Readings are normalised to UTC.
type Func func() time.Time

func (f Func) Now() time.Time {
	return f().UTC()
}

// NewSystem reads the wall clock.
func NewSystem() Clock {
	return Func(time.Now)
}

// NewFixed always reports t.
func NewFixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}
