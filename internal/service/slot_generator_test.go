package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
	"github.com/kcirtapfromspace/offleash-sub002/internal/travel"
)

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func fixedRoute(minutes int) TravelLookup {
	return func(context.Context, uuid.UUID, uuid.UUID) (travel.Route, error) {
		return travel.Route{DurationMinutes: minutes}, nil
	}
}

func TestIsTight(t *testing.T) {
	cases := []struct {
		name   string
		gap    int
		travel *int
		buffer int
		margin int
		want   bool
	}{
		{name: "ample gap", gap: 30, travel: intPtr(20), buffer: 15, want: false},
		{name: "below buffer", gap: 10, travel: intPtr(5), buffer: 15, want: true},
		{name: "below travel", gap: 20, travel: intPtr(25), buffer: 15, want: true},
		{name: "exactly travel", gap: 25, travel: intPtr(25), buffer: 15, want: false},
		{name: "margin pushes over", gap: 25, travel: intPtr(25), buffer: 15, margin: 5, want: true},
		{name: "unknown travel uses buffer only", gap: 15, travel: nil, buffer: 15, want: false},
		{name: "unknown travel below buffer", gap: 14, travel: nil, buffer: 15, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTight(tc.gap, tc.travel, tc.buffer, tc.margin); got != tc.want {
				t.Fatalf("IsTight(%d, %v, %d, %d) = %v, want %v", tc.gap, tc.travel, tc.buffer, tc.margin, got, tc.want)
			}
		})
	}
}

func TestIsTight_Monotonic(t *testing.T) {
	const buffer = 15
	for travelMin := 0; travelMin <= 60; travelMin += 5 {
		threshold := max(buffer, travelMin)
		for gap := 0; gap <= 90; gap++ {
			got := IsTight(gap, &travelMin, buffer, 0)
			want := gap < threshold
			if got != want {
				t.Fatalf("gap=%d travel=%d: tight=%v, want %v", gap, travelMin, got, want)
			}
		}
	}
}

func TestGenerateSlots_BookedMorning(t *testing.T) {
	day := mustTime(t, 2025, 1, 6, 0, 0)
	open := []calendar.TimeRange{
		{Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)},
		{Start: day.Add(10*time.Hour + 30*time.Minute), End: day.Add(17 * time.Hour)},
	}
	dest := uuid.New()
	booking := model.Booking{
		LocationID:     uuid.New(),
		ScheduledStart: day.Add(10 * time.Hour),
		ScheduledEnd:   day.Add(10*time.Hour + 30*time.Minute),
	}

	slots, err := GenerateSlots(context.Background(), SlotParams{
		WalkerID:        uuid.New(),
		Open:            open,
		ServiceDuration: 30 * time.Minute,
		Granularity:     15 * time.Minute,
		TravelBuffer:    15 * time.Minute,
		Location:        time.UTC,
		Destination:     dest,
		Bookings:        []model.Booking{booking},
	}, fixedRoute(20))
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}

	if len(slots) != 28 {
		t.Fatalf("expected 28 slots, got %d", len(slots))
	}
	for i, want := range []string{"09:00", "09:15", "09:30", "10:30"} {
		if got := slots[i].Start.Format("15:04"); got != want {
			t.Fatalf("slot %d: expected %s, got %s", i, want, got)
		}
	}
	if last := slots[len(slots)-1].Start.Format("15:04"); last != "16:30" {
		t.Fatalf("expected last slot 16:30, got %s", last)
	}

	for i := 1; i < len(slots); i++ {
		if !slots[i].Start.After(slots[i-1].Start) {
			t.Fatalf("slots not strictly ordered at %d", i)
		}
	}
	for _, s := range slots {
		if s.Start.Minute()%15 != 0 {
			t.Fatalf("slot %s not aligned", s.Start)
		}
		if booking.Interval().Overlaps(calendar.TimeRange{Start: s.Start, End: s.End}) {
			t.Fatalf("slot %s overlaps existing booking", s.Start)
		}
	}

	if slots[0].Confidence != ConfidenceHigh || slots[0].GapMinutes != nil || slots[0].IsTight {
		t.Fatalf("expected untouched first slot, got %+v", slots[0])
	}

	// 20 min travel from the 10:00 booking: 10:30 and 10:45 are tight.
	byTime := map[string]AvailableSlot{}
	for _, s := range slots {
		byTime[s.Start.Format("15:04")] = s
	}
	for _, tc := range []struct {
		at    string
		gap   int
		tight bool
		conf  Confidence
	}{
		{at: "10:30", gap: 0, tight: true, conf: ConfidenceMedium},
		{at: "10:45", gap: 15, tight: true, conf: ConfidenceMedium},
		{at: "11:00", gap: 30, tight: false, conf: ConfidenceHigh},
	} {
		s := byTime[tc.at]
		if s.GapMinutes == nil || *s.GapMinutes != tc.gap {
			t.Fatalf("%s: expected gap %d, got %v", tc.at, tc.gap, s.GapMinutes)
		}
		if s.IsTight != tc.tight || s.Confidence != tc.conf {
			t.Fatalf("%s: expected tight=%v confidence=%s, got %v %s", tc.at, tc.tight, tc.conf, s.IsTight, s.Confidence)
		}
		if s.TravelMinutes == nil || *s.TravelMinutes != 20 {
			t.Fatalf("%s: expected travel 20, got %v", tc.at, s.TravelMinutes)
		}
	}
	if !strings.Contains(byTime["10:30"].Warning, "only 0 min") {
		t.Fatalf("unexpected warning %q", byTime["10:30"].Warning)
	}
}

func TestGenerateSlots_TravelFailureDegrades(t *testing.T) {
	day := mustTime(t, 2025, 1, 6, 0, 0)
	calls := 0
	lookup := func(context.Context, uuid.UUID, uuid.UUID) (travel.Route, error) {
		calls++
		return travel.Route{}, travel.ErrRouteUnavailable
	}
	origin := uuid.New()

	slots, err := GenerateSlots(context.Background(), SlotParams{
		Open:            []calendar.TimeRange{{Start: day.Add(11 * time.Hour), End: day.Add(12 * time.Hour)}},
		ServiceDuration: 30 * time.Minute,
		Granularity:     15 * time.Minute,
		TravelBuffer:    15 * time.Minute,
		Location:        time.UTC,
		Destination:     uuid.New(),
		Bookings: []model.Booking{{
			LocationID:     origin,
			ScheduledStart: day.Add(10 * time.Hour),
			ScheduledEnd:   day.Add(11 * time.Hour),
		}},
	}, lookup)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if calls != 1 {
		t.Fatalf("expected one lookup per origin, got %d", calls)
	}

	first := slots[0]
	if first.TravelMinutes != nil {
		t.Fatalf("expected unknown travel, got %d", *first.TravelMinutes)
	}
	if first.Confidence != ConfidenceLow {
		t.Fatalf("expected low confidence, got %s", first.Confidence)
	}
	if !first.IsTight {
		t.Fatalf("gap 0 below buffer must be tight")
	}
	if !strings.Contains(first.Warning, "Travel time unavailable") {
		t.Fatalf("unexpected warning %q", first.Warning)
	}

	// 11:30 has a 30 min gap, so it is not tight, but travel stays unknown.
	last := slots[2]
	if last.IsTight || last.Confidence != ConfidenceLow {
		t.Fatalf("expected relaxed low-confidence slot, got %+v", last)
	}
	if !strings.Contains(last.Warning, "~21 min") {
		t.Fatalf("expected 70%% estimate in warning, got %q", last.Warning)
	}
}

func TestGenerateSlots_EstimatedRouteIsLowConfidence(t *testing.T) {
	day := mustTime(t, 2025, 1, 6, 0, 0)
	lookup := func(context.Context, uuid.UUID, uuid.UUID) (travel.Route, error) {
		return travel.Route{DurationMinutes: 5, Estimated: true}, nil
	}
	slots, err := GenerateSlots(context.Background(), SlotParams{
		Open:            []calendar.TimeRange{{Start: day.Add(12 * time.Hour), End: day.Add(13 * time.Hour)}},
		ServiceDuration: time.Hour,
		Granularity:     15 * time.Minute,
		TravelBuffer:    15 * time.Minute,
		Location:        time.UTC,
		Bookings: []model.Booking{{
			LocationID:     uuid.New(),
			ScheduledStart: day.Add(10 * time.Hour),
			ScheduledEnd:   day.Add(11 * time.Hour),
		}},
	}, lookup)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if slots[0].IsTight || slots[0].Confidence != ConfidenceLow {
		t.Fatalf("expected relaxed low-confidence slot, got %+v", slots[0])
	}
}

func TestGenerateSlots_NotBeforeAndValidation(t *testing.T) {
	day := mustTime(t, 2025, 1, 6, 0, 0)
	open := []calendar.TimeRange{{Start: day.Add(9 * time.Hour), End: day.Add(11 * time.Hour)}}

	slots, err := GenerateSlots(context.Background(), SlotParams{
		Open:            open,
		ServiceDuration: 30 * time.Minute,
		Granularity:     30 * time.Minute,
		Location:        time.UTC,
		NotBefore:       day.Add(9*time.Hour + 40*time.Minute),
	}, fixedRoute(0))
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 2 || slots[0].Start.Format("15:04") != "10:00" {
		t.Fatalf("expected 10:00 and 10:30, got %+v", slots)
	}

	_, err = GenerateSlots(context.Background(), SlotParams{Open: open, Granularity: time.Minute}, fixedRoute(0))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero duration, got %v", err)
	}
}
