package calendar

import (
	"errors"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

var (
	ErrInvalidWallClock = errors.New("invalid wall clock time, expected HH:MM")
	ErrInvalidDate      = errors.New("invalid date, expected YYYY-MM-DD")
)

// WallClock is a local time of day without a date or zone, as stored for
// working hours and series start times.
type WallClock struct {
	Hour   int
	Minute int
}

// ParseWallClock accepts "HH:MM" and "HH:MM:SS" (seconds are ignored).
func ParseWallClock(s string) (WallClock, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return WallClock{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return WallClock{}, fmt.Errorf("%w: %q", ErrInvalidWallClock, s)
}

func (w WallClock) String() string {
	return fmt.Sprintf("%02d:%02d", w.Hour, w.Minute)
}

// Minutes returns minutes since midnight.
func (w WallClock) Minutes() int {
	return w.Hour*60 + w.Minute
}

func (w WallClock) Before(other WallClock) bool {
	return w.Minutes() < other.Minutes()
}

// On places the wall clock time on the calendar day of date in loc.
func (w WallClock) On(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), w.Hour, w.Minute, 0, 0, loc)
}

// ParseDate parses a YYYY-MM-DD calendar day as local midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// StartOfDay returns local midnight of the day t falls on in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayRange is the whole calendar day of date in loc, [00:00, next 00:00).
func DayRange(date time.Time, loc *time.Location) TimeRange {
	start := StartOfDay(date, loc)
	return TimeRange{Start: start, End: start.AddDate(0, 0, 1)}
}

// StartOfWeek returns local midnight of the Sunday on or before t.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// LoadLocation resolves an IANA zone name; an empty name means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}
