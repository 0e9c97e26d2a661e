package calendar

import (
	"errors"
	"sort"
	"time"
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrInvalidStep      = errors.New("step must be positive")
)

// TimeRange is the half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange builds an interval and rejects zero or empty ranges.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return TimeRange{}, ErrInvalidTimeRange
	}
	return TimeRange{Start: start, End: end}, nil
}

func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

func (tr TimeRange) IsEmpty() bool {
	return !tr.End.After(tr.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching endpoints do not overlap.
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return tr.Start.Before(other.End) && other.Start.Before(tr.End)
}

// Contains reports whether other lies entirely inside tr.
func (tr TimeRange) Contains(other TimeRange) bool {
	return !other.Start.Before(tr.Start) && !other.End.After(tr.End)
}

// Clip returns the part of tr that falls inside bounds.
func (tr TimeRange) Clip(bounds TimeRange) TimeRange {
	start, end := tr.Start, tr.End
	if start.Before(bounds.Start) {
		start = bounds.Start
	}
	if end.After(bounds.End) {
		end = bounds.End
	}
	return TimeRange{Start: start, End: end}
}

// UTC converts both bounds to UTC.
func (tr TimeRange) UTC() TimeRange {
	return TimeRange{Start: tr.Start.UTC(), End: tr.End.UTC()}
}

// In converts both bounds to loc.
func (tr TimeRange) In(loc *time.Location) TimeRange {
	return TimeRange{Start: tr.Start.In(loc), End: tr.End.In(loc)}
}

// Subtract removes cut from every interval of intervals. Intervals that
// overlap cut are split into the parts before and after it; zero-length
// pieces are dropped. The input slice is not modified.
func Subtract(intervals []TimeRange, cut TimeRange) []TimeRange {
	out := make([]TimeRange, 0, len(intervals)+1)
	for _, iv := range intervals {
		if cut.IsEmpty() || !iv.Overlaps(cut) {
			out = append(out, iv)
			continue
		}
		if cut.Start.After(iv.Start) {
			out = append(out, TimeRange{Start: iv.Start, End: cut.Start})
		}
		if cut.End.Before(iv.End) {
			out = append(out, TimeRange{Start: cut.End, End: iv.End})
		}
	}
	return out
}

// SubtractAll folds Subtract over cuts and returns the result ordered by start.
func SubtractAll(intervals []TimeRange, cuts []TimeRange) []TimeRange {
	result := append([]TimeRange(nil), intervals...)
	for _, cut := range cuts {
		result = Subtract(result, cut)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Start.Before(result[j].Start)
	})
	return result
}

// TotalDuration sums the length of every interval.
func TotalDuration(intervals []TimeRange) time.Duration {
	var total time.Duration
	for _, iv := range intervals {
		total += iv.Duration()
	}
	return total
}

// HasOverlap checks newRange against existing and returns every interval it
// collides with.
func HasOverlap(newRange TimeRange, existing []TimeRange) (bool, []TimeRange) {
	var conflicts []TimeRange
	for _, tr := range existing {
		if newRange.Overlaps(tr) {
			conflicts = append(conflicts, tr)
		}
	}
	return len(conflicts) > 0, conflicts
}

// AlignUp moves t forward to the next wall-clock boundary in loc that is a
// multiple of step counted from local midnight. Instants already on a
// boundary are returned unchanged.
func AlignUp(t time.Time, step time.Duration, loc *time.Location) time.Time {
	if step <= 0 {
		return t
	}
	if loc == nil {
		loc = t.Location()
	}
	local := t.In(loc)

	wall := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
	rem := wall % step
	if rem == 0 {
		return local
	}
	aligned := wall + step - rem
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, int(aligned), loc)
}

// CandidateStarts returns every start inside tr, aligned to step in loc, for
// which start+length still fits in tr.
func CandidateStarts(tr TimeRange, length, step time.Duration, loc *time.Location) ([]time.Time, error) {
	if length <= 0 || step <= 0 {
		return nil, ErrInvalidStep
	}
	if tr.IsEmpty() {
		return []time.Time{}, nil
	}

	var starts []time.Time
	for cur := AlignUp(tr.Start, step, loc); !cur.Add(length).After(tr.End); cur = cur.Add(step) {
		starts = append(starts, cur)
	}
	return starts, nil
}
