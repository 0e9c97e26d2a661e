package calendar

import "time"

// Clock supplies the current instant. Everything that compares against
// "now" or "today" takes a Clock so tests can pin time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// Today returns local midnight of the current day in loc.
func Today(c Clock, loc *time.Location) time.Time {
	return StartOfDay(c.Now(), loc)
}
