package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
	"github.com/kcirtapfromspace/offleash-sub002/internal/repository"
)

// DaySchedule is everything known about one walker on one local day.
type DaySchedule struct {
	Walker   *model.Walker
	Location *time.Location
	// Day is local midnight in Location.
	Day time.Time
	// Window is nil when the walker is off.
	Window *calendar.TimeRange
	// Bookings that occupy time on the day, ordered by start.
	Bookings []model.Booking
	// Blocking blocks overlapping the day.
	Blocks []model.Block
	// Open is the working window minus bookings and blocks: ordered,
	// non-overlapping, each of nonzero length.
	Open []calendar.TimeRange
}

// AvailabilityService resolves working hours, bookings and blocks into the
// open intervals of a walker's day.
type AvailabilityService struct {
	walkers  repository.WalkerRepository
	hours    repository.WorkingHoursRepository
	bookings repository.BookingRepository
	blocks   repository.BlockRepository
}

func NewAvailabilityService(
	walkers repository.WalkerRepository,
	hours repository.WorkingHoursRepository,
	bookings repository.BookingRepository,
	blocks repository.BlockRepository,
) *AvailabilityService {
	return &AvailabilityService{
		walkers:  walkers,
		hours:    hours,
		bookings: bookings,
		blocks:   blocks,
	}
}

// availabilityFor builds a resolver on db, typically a transaction.
func availabilityFor(db *gorm.DB) *AvailabilityService {
	return NewAvailabilityService(
		repository.NewGormWalkerRepository(db),
		repository.NewGormWorkingHoursRepository(db),
		repository.NewGormBookingRepository(db),
		repository.NewGormBlockRepository(db),
	)
}

// OpenIntervals returns the open intervals of the walker on the calendar day
// of date (only year, month and day are used; they are read in the walker's
// zone).
func (s *AvailabilityService) OpenIntervals(ctx context.Context, walkerID uuid.UUID, date time.Time) ([]calendar.TimeRange, error) {
	day, err := s.DaySchedule(ctx, walkerID, date)
	if err != nil {
		return nil, err
	}
	return day.Open, nil
}

func (s *AvailabilityService) DaySchedule(ctx context.Context, walkerID uuid.UUID, date time.Time) (*DaySchedule, error) {
	walker, err := s.walkers.GetByID(ctx, walkerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("walker %s: %w", walkerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load walker: %w", err)
	}
	return s.daySchedule(ctx, walker, date)
}

func (s *AvailabilityService) daySchedule(ctx context.Context, walker *model.Walker, date time.Time) (*DaySchedule, error) {
	loc, err := calendar.LoadLocation(walker.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("walker %s: %w", walker.ID, err)
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	sched := &DaySchedule{
		Walker:   walker,
		Location: loc,
		Day:      dayStart,
		Open:     []calendar.TimeRange{},
	}

	wh, err := s.hours.GetForDay(ctx, walker.ID, int(dayStart.Weekday()))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sched, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load working hours: %w", err)
	}
	if !wh.IsActive {
		return sched, nil
	}

	window, err := wh.Window(dayStart, loc)
	if err != nil {
		return nil, fmt.Errorf("working hours %s: %w", wh.ID, err)
	}
	sched.Window = &window

	dayRange := calendar.DayRange(dayStart, loc)

	bookings, err := s.bookings.ListOccupyingByWalkerRange(ctx, walker.ID, dayRange.Start, dayRange.End)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	blocks, err := s.blocks.ListBlockingByWalkerRange(ctx, walker.ID, dayRange.Start, dayRange.End)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	sched.Bookings = bookings
	sched.Blocks = blocks

	cuts := make([]calendar.TimeRange, 0, len(bookings)+len(blocks))
	for _, b := range bookings {
		cuts = append(cuts, b.Interval())
	}
	for _, b := range blocks {
		cuts = append(cuts, b.Interval())
	}

	open := calendar.SubtractAll([]calendar.TimeRange{window}, cuts)
	for i := range open {
		open[i] = open[i].In(loc)
	}
	sched.Open = open
	return sched, nil
}
