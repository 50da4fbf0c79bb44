package database

import "time"

// Clock supplies the time used to stamp new blocks. Successive calls are
// expected to never go backwards.
type Clock interface {
	Now() time.Time
}

// ClockFunc is an adapter to allow the use of ordinary functions as clocks.
type ClockFunc func() time.Time

// Now implements the Clock interface.
func (f ClockFunc) Now() time.Time {
	return f()
}

// systemClock is the clock used when none is configured.
type systemClock struct{}

// Now implements the Clock interface.
func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
