package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
	"github.com/kcirtapfromspace/offleash-sub002/internal/lock"
	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
	"github.com/kcirtapfromspace/offleash-sub002/internal/repository"
)

type CreateBookingInput struct {
	CustomerID uuid.UUID
	WalkerID   uuid.UUID
	ServiceID  uuid.UUID
	LocationID uuid.UUID
	Start      time.Time
	Notes      string

	SeriesID         *uuid.UUID
	OccurrenceNumber *int
}

// BookingService is the single-occurrence creation path. Creations for the
// same walker are serialized by a lock so the availability check and the
// insert see a consistent calendar.
type BookingService struct {
	db       *gorm.DB
	services repository.ServiceRepository
	locker   lock.Locker
	lockTTL  time.Duration
	clock    calendar.Clock
	log      *zap.Logger
}

func NewBookingService(
	db *gorm.DB,
	services repository.ServiceRepository,
	locker lock.Locker,
	lockTTL time.Duration,
	clock calendar.Clock,
	log *zap.Logger,
) *BookingService {
	if clock == nil {
		clock = calendar.SystemClock
	}
	if log == nil {
		log = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &BookingService{
		db:       db,
		services: services,
		locker:   locker,
		lockTTL:  lockTTL,
		clock:    clock,
		log:      log,
	}
}

// Create books in.Start for the service duration. Business rejections are
// *ConflictError values; malformed input is ErrValidation.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	if in.CustomerID == uuid.Nil || in.WalkerID == uuid.Nil || in.ServiceID == uuid.Nil || in.LocationID == uuid.Nil {
		return nil, validationf("customer_id, walker_id, service_id and location_id are required")
	}
	if in.Start.IsZero() {
		return nil, validationf("start is required")
	}

	svc, err := s.services.GetByID(ctx, in.ServiceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("service %s: %w", in.ServiceID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load service: %w", err)
	}
	if svc.DurationMinutes <= 0 {
		return nil, validationf("service %s has no duration", svc.ID)
	}

	interval := calendar.TimeRange{Start: in.Start, End: in.Start.Add(svc.Duration())}
	if interval.Start.Before(s.clock.Now()) {
		return nil, conflict(ReasonInPast)
	}

	release, err := lock.Acquire(ctx, s.locker, walkerLockKey(in.WalkerID), s.lockTTL, s.lockTTL)
	if errors.Is(err, lock.ErrLocked) {
		return nil, conflict(ReasonWalkerBusy)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("release walker lock", zap.Stringer("walker_id", in.WalkerID), zap.Error(err))
		}
	}()

	var booking *model.Booking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkOpen(ctx, availabilityFor(tx), in.WalkerID, interval); err != nil {
			return err
		}

		b := &model.Booking{
			CustomerID:        in.CustomerID,
			WalkerID:          in.WalkerID,
			ServiceID:         in.ServiceID,
			LocationID:        in.LocationID,
			ScheduledStart:    interval.Start,
			ScheduledEnd:      interval.End,
			Status:            model.BookingStatusConfirmed,
			RecurringSeriesID: in.SeriesID,
			OccurrenceNumber:  in.OccurrenceNumber,
			Notes:             in.Notes,
		}
		if err := repository.NewGormBookingRepository(tx).Create(ctx, b); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return conflict(ReasonDuplicateBooking)
			}
			return fmt.Errorf("insert booking: %w", err)
		}

		if err := repository.NewGormEventRepository(tx).Create(ctx, &model.Event{
			EventType: model.EventTypeBookingCreated,
			WalkerID:  &b.WalkerID,
			BookingID: &b.ID,
			SeriesID:  b.RecurringSeriesID,
			Details:   fmt.Sprintf("customer=%s start=%s", b.CustomerID, b.ScheduledStart.Format(time.RFC3339)),
		}); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking created",
		zap.Stringer("booking_id", booking.ID),
		zap.Stringer("walker_id", booking.WalkerID),
		zap.Time("start", booking.ScheduledStart),
	)
	return booking, nil
}

// ListBySeries returns every booking materialized for a recurring series,
// cancelled ones included.
func (s *BookingService) ListBySeries(ctx context.Context, seriesID uuid.UUID) ([]model.Booking, error) {
	return repository.NewGormBookingRepository(s.db).ListBySeries(ctx, seriesID)
}

// checkOpen verifies interval lies inside working hours and inside a single
// open interval of the walker's day.
func checkOpen(ctx context.Context, avail *AvailabilityService, walkerID uuid.UUID, interval calendar.TimeRange) error {
	walker, err := avail.walkers.GetByID(ctx, walkerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("walker %s: %w", walkerID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load walker: %w", err)
	}
	loc, err := calendar.LoadLocation(walker.TimeZone)
	if err != nil {
		return fmt.Errorf("walker %s: %w", walker.ID, err)
	}

	sched, err := avail.daySchedule(ctx, walker, interval.Start.In(loc))
	if err != nil {
		return err
	}
	if sched.Window == nil || !sched.Window.Contains(interval) {
		return conflict(ReasonOutsideWorkingHours)
	}
	for _, open := range sched.Open {
		if open.Contains(interval) {
			return nil
		}
	}
	return conflict(ReasonSlotUnavailable)
}

func walkerLockKey(walkerID uuid.UUID) string {
	return "walker:" + walkerID.String()
}
