package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// IndefiniteWeeks is how far an open-ended weekly rule is materialized.
// Re-extending it before it runs out is a periodic job outside this service.
const IndefiniteWeeks = 52

const indefiniteToken = "INDEFINITE"

var (
	ErrInvalidRule        = errors.New("invalid recurrence rule")
	ErrInvalidRecipe      = errors.New("invalid recurrence recipe")
	ErrTooManyOccurrences = errors.New("recipe exceeds the occurrence limit")
)

// Horizon is how long a weekly rule runs: a fixed number of weeks or
// indefinitely.
type Horizon struct {
	weeks      int
	indefinite bool
}

func FixedHorizon(weeks int) Horizon { return Horizon{weeks: weeks} }

func IndefiniteHorizon() Horizon { return Horizon{indefinite: true} }

// Weeks is the number of weeks that get materialized.
func (h Horizon) Weeks() int {
	if h.indefinite {
		return IndefiniteWeeks
	}
	return h.weeks
}

func (h Horizon) Indefinite() bool { return h.indefinite }

// RecurrenceRule is the closed set of rules a block series can carry.
// WeeklyRule is currently the only variant.
type RecurrenceRule interface {
	fmt.Stringer
	isRecurrenceRule()
}

// WeeklyRule repeats on a set of weekdays for a horizon of weeks.
type WeeklyRule struct {
	Days    []time.Weekday
	Horizon Horizon
}

func (WeeklyRule) isRecurrenceRule() {}

// NewWeeklyRule normalizes days (sorted, de-duplicated) and validates the rule.
func NewWeeklyRule(days []time.Weekday, horizon Horizon) (WeeklyRule, error) {
	seen := make(map[time.Weekday]struct{}, len(days))
	norm := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return WeeklyRule{}, fmt.Errorf("%w: day %d out of range", ErrInvalidRule, d)
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		norm = append(norm, d)
	}
	sort.Slice(norm, func(i, j int) bool { return norm[i] < norm[j] })

	if len(norm) == 0 {
		return WeeklyRule{}, fmt.Errorf("%w: at least one day must be selected", ErrInvalidRule)
	}
	if !horizon.indefinite && (horizon.weeks < 1 || horizon.weeks > IndefiniteWeeks) {
		return WeeklyRule{}, fmt.Errorf("%w: weeks must be between 1 and %d", ErrInvalidRule, IndefiniteWeeks)
	}
	return WeeklyRule{Days: norm, Horizon: horizon}, nil
}

// String renders the persisted form WEEKLY:<days>:<weeks|INDEFINITE>.
func (r WeeklyRule) String() string {
	days := make([]string, 0, len(r.Days))
	for _, d := range r.Days {
		days = append(days, strconv.Itoa(int(d)))
	}
	horizon := strconv.Itoa(r.Horizon.weeks)
	if r.Horizon.indefinite {
		horizon = indefiniteToken
	}
	return "WEEKLY:" + strings.Join(days, ",") + ":" + horizon
}

// Dates lists every selected weekday across the horizon, starting with the
// week that contains today. Days strictly before today are skipped.
func (r WeeklyRule) Dates(today time.Time, loc *time.Location) []time.Time {
	today = StartOfDay(today, loc)
	weekStart := StartOfWeek(today, loc)

	var dates []time.Time
	for w := 0; w < r.Horizon.Weeks(); w++ {
		for _, d := range r.Days {
			date := weekStart.AddDate(0, 0, 7*w+int(d))
			if date.Before(today) {
				continue
			}
			dates = append(dates, date)
		}
	}
	return dates
}

// ParseRecurrenceRule reads the persisted string form back into a rule.
func ParseRecurrenceRule(s string) (RecurrenceRule, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 || !strings.EqualFold(parts[0], "WEEKLY") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRule, s)
	}

	var days []time.Weekday
	for _, raw := range strings.Split(parts[1], ",") {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: bad day %q", ErrInvalidRule, raw)
		}
		days = append(days, time.Weekday(n))
	}

	var horizon Horizon
	if strings.EqualFold(parts[2], indefiniteToken) {
		horizon = IndefiniteHorizon()
	} else {
		weeks, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("%w: bad horizon %q", ErrInvalidRule, parts[2])
		}
		horizon = FixedHorizon(weeks)
	}

	return NewWeeklyRule(days, horizon)
}

// Frequency of a customer booking series.
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiWeekly Frequency = "bi_weekly"
	FrequencyMonthly  Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

// SeriesRecipe describes a booking that repeats on one fixed weekday.
// Exactly one of EndDate and TotalOccurrences bounds the series.
type SeriesRecipe struct {
	Frequency Frequency
	DayOfWeek time.Weekday
	TimeOfDay WallClock
	Location  *time.Location

	// EndDate is an inclusive local calendar day.
	EndDate          *time.Time
	TotalOccurrences int
}

func (r SeriesRecipe) Validate() error {
	if !r.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRecipe, r.Frequency)
	}
	if r.DayOfWeek < time.Sunday || r.DayOfWeek > time.Saturday {
		return fmt.Errorf("%w: day_of_week must be 0-6", ErrInvalidRecipe)
	}
	if r.TimeOfDay.Hour < 0 || r.TimeOfDay.Hour > 23 || r.TimeOfDay.Minute < 0 || r.TimeOfDay.Minute > 59 {
		return fmt.Errorf("%w: time_of_day out of range", ErrInvalidRecipe)
	}
	if r.Location == nil {
		return fmt.Errorf("%w: timezone is required", ErrInvalidRecipe)
	}
	hasEnd := r.EndDate != nil
	hasCount := r.TotalOccurrences != 0
	if hasEnd == hasCount {
		return fmt.Errorf("%w: exactly one of end_date and total_occurrences is required", ErrInvalidRecipe)
	}
	if hasCount && r.TotalOccurrences < 0 {
		return fmt.Errorf("%w: total_occurrences must be positive", ErrInvalidRecipe)
	}
	return nil
}

// FirstOccurrence is the earliest start on DayOfWeek at TimeOfDay that is
// strictly after now.
func (r SeriesRecipe) FirstOccurrence(now time.Time) time.Time {
	today := StartOfDay(now, r.Location)
	diff := (int(r.DayOfWeek) - int(today.Weekday()) + 7) % 7
	first := r.TimeOfDay.On(today.AddDate(0, 0, diff), r.Location)
	if !first.After(now) {
		first = r.TimeOfDay.On(today.AddDate(0, 0, diff+7), r.Location)
	}
	return first
}

// Occurrences expands the recipe into local start instants in chronological
// order. A recipe that would produce more than max occurrences is rejected
// with ErrTooManyOccurrences rather than cut short.
func (r SeriesRecipe) Occurrences(now time.Time, max int) ([]time.Time, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.TotalOccurrences > max {
		return nil, fmt.Errorf("%w: total_occurrences %d is above %d", ErrTooManyOccurrences, r.TotalOccurrences, max)
	}

	first := r.FirstOccurrence(now)
	wd := rruleWeekdays[r.DayOfWeek]

	opt := rrule.ROption{
		Dtstart:   first,
		Freq:      rrule.WEEKLY,
		Interval:  1,
		Byweekday: []rrule.Weekday{wd},
	}
	switch r.Frequency {
	case FrequencyBiWeekly:
		opt.Interval = 2
	case FrequencyMonthly:
		// Same ordinal weekday every month ("2nd Tuesday"); a 5th weekday
		// becomes "last" since most months have only four.
		nth := (first.Day()-1)/7 + 1
		if nth == 5 {
			nth = -1
		}
		opt.Freq = rrule.MONTHLY
		opt.Byweekday = []rrule.Weekday{wd.Nth(nth)}
	}

	if r.TotalOccurrences > 0 {
		opt.Count = r.TotalOccurrences
	}
	if r.EndDate != nil {
		end := r.EndDate.In(r.Location)
		opt.Until = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, r.Location)
		if opt.Until.Before(first) {
			return nil, fmt.Errorf("%w: end_date is before the first occurrence", ErrInvalidRecipe)
		}
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecipe, err)
	}

	var out []time.Time
	next := rule.Iterator()
	for {
		occ, ok := next()
		if !ok {
			break
		}
		if len(out) == max {
			return nil, fmt.Errorf("%w: end_date allows more than %d occurrences", ErrTooManyOccurrences, max)
		}
		out = append(out, occ.In(r.Location))
	}
	return out, nil
}

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}
