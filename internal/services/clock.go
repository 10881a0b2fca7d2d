package services

import (
	"time"

	"budgetbuddy/internal/core"
)

// Clock returns the current instant. A nil Clock reads the wall clock.
type Clock func() time.Time

// Today returns the current calendar date in UTC.
func (c Clock) Today() core.Date {
	if c == nil {
		return core.DateOf(time.Now().UTC())
	}
	return core.DateOf(c().UTC())
}

// FixedClock always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
