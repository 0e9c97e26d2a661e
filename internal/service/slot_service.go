package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
	"github.com/kcirtapfromspace/offleash-sub002/internal/repository"
	"github.com/kcirtapfromspace/offleash-sub002/internal/travel"
)

// TravelTimer is the travel-time source used for tightness checks.
type TravelTimer interface {
	TravelTime(ctx context.Context, origin, destination uuid.UUID) (travel.Route, error)
}

type SlotConfig struct {
	Granularity  time.Duration
	TravelBuffer time.Duration
	SafetyMargin time.Duration
	// Concurrency bounds how many walkers are resolved at once.
	Concurrency int
}

// SlotQuery asks for slots on a calendar date. WalkerID pins a walker;
// otherwise every eligible walker is considered.
type SlotQuery struct {
	Date       time.Time
	ServiceID  uuid.UUID
	LocationID uuid.UUID
	WalkerID   *uuid.UUID
}

// WalkerSlots is the slot list of one walker, ordered by start.
type WalkerSlots struct {
	WalkerID  uuid.UUID
	Date      string
	ServiceID uuid.UUID
	Slots     []AvailableSlot
}

type SlotService struct {
	availability *AvailabilityService
	walkers      repository.WalkerRepository
	services     repository.ServiceRepository
	locations    repository.LocationRepository
	travel       TravelTimer
	clock        calendar.Clock
	cfg          SlotConfig
	log          *zap.Logger
}

func NewSlotService(
	availability *AvailabilityService,
	walkers repository.WalkerRepository,
	services repository.ServiceRepository,
	locations repository.LocationRepository,
	travel TravelTimer,
	clock calendar.Clock,
	cfg SlotConfig,
	log *zap.Logger,
) *SlotService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if clock == nil {
		clock = calendar.SystemClock
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SlotService{
		availability: availability,
		walkers:      walkers,
		services:     services,
		locations:    locations,
		travel:       travel,
		clock:        clock,
		cfg:          cfg,
		log:          log,
	}
}

func (s *SlotService) ListSlots(ctx context.Context, q SlotQuery) ([]WalkerSlots, error) {
	if q.Date.IsZero() {
		return nil, validationf("date is required")
	}
	if q.ServiceID == uuid.Nil {
		return nil, validationf("service_id is required")
	}
	if q.LocationID == uuid.Nil {
		return nil, validationf("location_id is required")
	}

	svc, err := s.services.GetByID(ctx, q.ServiceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("service %s: %w", q.ServiceID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load service: %w", err)
	}
	if _, err := s.locations.GetByID(ctx, q.LocationID); errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("location %s: %w", q.LocationID, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("load location: %w", err)
	}

	walkers, err := s.candidateWalkers(ctx, q)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	results := make([]WalkerSlots, len(walkers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := range walkers {
		i := i
		walker := &walkers[i]
		g.Go(func() error {
			sched, err := s.availability.daySchedule(gctx, walker, q.Date)
			if err != nil {
				return fmt.Errorf("walker %s: %w", walker.ID, err)
			}

			slots, err := GenerateSlots(gctx, SlotParams{
				WalkerID:        walker.ID,
				Open:            sched.Open,
				ServiceDuration: svc.Duration(),
				Granularity:     s.cfg.Granularity,
				TravelBuffer:    s.cfg.TravelBuffer,
				SafetyMargin:    s.cfg.SafetyMargin,
				Location:        sched.Location,
				Destination:     q.LocationID,
				Bookings:        sched.Bookings,
				NotBefore:       now,
			}, s.lookupTravel)
			if err != nil {
				return fmt.Errorf("walker %s: %w", walker.ID, err)
			}

			results[i] = WalkerSlots{
				WalkerID:  walker.ID,
				Date:      sched.Day.Format(calendar.DateLayout),
				ServiceID: svc.ID,
				Slots:     slots,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *SlotService) candidateWalkers(ctx context.Context, q SlotQuery) ([]model.Walker, error) {
	if q.WalkerID != nil {
		w, err := s.walkers.GetByID(ctx, *q.WalkerID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("walker %s: %w", *q.WalkerID, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("load walker: %w", err)
		}
		return []model.Walker{*w}, nil
	}

	walkers, err := s.walkers.ListEligible(ctx, q.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("list eligible walkers: %w", err)
	}
	return walkers, nil
}

// lookupTravel degrades provider failures to an unknown travel time.
func (s *SlotService) lookupTravel(ctx context.Context, origin, destination uuid.UUID) (travel.Route, error) {
	route, err := s.travel.TravelTime(ctx, origin, destination)
	if err != nil {
		s.log.Warn("travel time unavailable",
			zap.Stringer("origin", origin),
			zap.Stringer("destination", destination),
			zap.Error(err),
		)
	}
	return route, err
}
