package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
	"github.com/kcirtapfromspace/offleash-sub002/internal/travel"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Share of the gap shown as a travel guess when the provider failed.
// Display only; it never drives IsTight.
const estimatedTravelShare = 0.7

// AvailableSlot is a bookable start for one walker.
type AvailableSlot struct {
	Start    time.Time
	End      time.Time
	WalkerID uuid.UUID

	// TravelMinutes is nil when there is no preceding booking or the
	// travel time could not be determined.
	TravelMinutes *int
	// GapMinutes is the time since the preceding booking ended, nil when
	// there is none.
	GapMinutes *int

	IsTight    bool
	Confidence Confidence
	Warning    string
}

// TravelLookup returns the route between two locations.
type TravelLookup func(ctx context.Context, origin, destination uuid.UUID) (travel.Route, error)

// SlotParams describes one walker's day for GenerateSlots.
type SlotParams struct {
	WalkerID uuid.UUID
	Open     []calendar.TimeRange

	ServiceDuration time.Duration
	Granularity     time.Duration
	TravelBuffer    time.Duration
	SafetyMargin    time.Duration

	// Location aligns starts to the walker's wall clock.
	Location *time.Location
	// Destination is where the new appointment takes place.
	Destination uuid.UUID
	// Bookings is the walker's existing schedule, used to find the
	// booking that precedes each candidate.
	Bookings []model.Booking
	// Slots starting before NotBefore are dropped.
	NotBefore time.Time
}

type travelResult struct {
	route travel.Route
	err   error
}

// GenerateSlots turns open intervals into aligned slot starts annotated with
// travel tightness. Tight slots are flagged, never dropped.
func GenerateSlots(ctx context.Context, p SlotParams, lookup TravelLookup) ([]AvailableSlot, error) {
	if p.ServiceDuration <= 0 {
		return nil, validationf("service duration must be positive")
	}
	if p.Granularity <= 0 {
		return nil, validationf("slot granularity must be positive")
	}

	bookings := append([]model.Booking(nil), p.Bookings...)
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].ScheduledEnd.Before(bookings[j].ScheduledEnd)
	})

	// one lookup per origin location per call
	memo := make(map[uuid.UUID]travelResult)
	lookupFrom := func(origin uuid.UUID) travelResult {
		if r, ok := memo[origin]; ok {
			return r
		}
		route, err := lookup(ctx, origin, p.Destination)
		r := travelResult{route: route, err: err}
		memo[origin] = r
		return r
	}

	slots := []AvailableSlot{}
	for _, iv := range p.Open {
		starts, err := calendar.CandidateStarts(iv, p.ServiceDuration, p.Granularity, p.Location)
		if err != nil {
			return nil, err
		}
		for _, start := range starts {
			if !p.NotBefore.IsZero() && start.Before(p.NotBefore) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			slot := AvailableSlot{
				Start:      start,
				End:        start.Add(p.ServiceDuration),
				WalkerID:   p.WalkerID,
				Confidence: ConfidenceHigh,
			}

			prev := precedingBooking(bookings, start)
			if prev != nil {
				gap := int(start.Sub(prev.ScheduledEnd) / time.Minute)
				slot.GapMinutes = &gap

				tr := lookupFrom(prev.LocationID)
				annotate(&slot, gap, tr, p.TravelBuffer, p.SafetyMargin)
			}

			slots = append(slots, slot)
		}
	}
	return slots, nil
}

// precedingBooking is the booking whose end is closest to, but not after,
// start. bookings must be ordered by end.
func precedingBooking(bookings []model.Booking, start time.Time) *model.Booking {
	i := sort.Search(len(bookings), func(i int) bool {
		return bookings[i].ScheduledEnd.After(start)
	})
	if i == 0 {
		return nil
	}
	return &bookings[i-1]
}

func annotate(slot *AvailableSlot, gap int, tr travelResult, buffer, margin time.Duration) {
	bufferMin := int(buffer / time.Minute)
	marginMin := int(margin / time.Minute)

	travelKnown := tr.err == nil
	if travelKnown {
		minutes := tr.route.DurationMinutes
		slot.TravelMinutes = &minutes
	}

	slot.IsTight = IsTight(gap, slot.TravelMinutes, bufferMin, marginMin)

	switch {
	case !travelKnown || tr.route.Estimated:
		slot.Confidence = ConfidenceLow
	case slot.IsTight:
		slot.Confidence = ConfidenceMedium
	default:
		slot.Confidence = ConfidenceHigh
	}

	if slot.IsTight {
		slot.Warning = fmt.Sprintf("Tight schedule: only %d min between appointments", gap)
	}
	if !travelKnown {
		guess := int(math.Round(float64(gap) * estimatedTravelShare))
		note := fmt.Sprintf("Travel time unavailable (estimated ~%d min)", guess)
		if slot.Warning != "" {
			slot.Warning += ". " + note
		} else {
			slot.Warning = note
		}
	}
}

// IsTight reports whether gapMinutes leaves too little room after the
// previous appointment: shorter than the buffer, or shorter than the known
// travel time plus margin.
func IsTight(gapMinutes int, travelMinutes *int, bufferMinutes, marginMinutes int) bool {
	if gapMinutes < bufferMinutes {
		return true
	}
	if travelMinutes != nil && gapMinutes < *travelMinutes+marginMinutes {
		return true
	}
	return false
}
