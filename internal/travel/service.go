package travel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
)

// sharedFetchTimeout bounds a provider lookup that runs on behalf of every
// caller waiting on the same pair.
const sharedFetchTimeout = 15 * time.Second

// LocationStore resolves location coordinates for the router.
type LocationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Location, error)
}

// Service answers travel-time questions from the cache and falls through
// to the router on a miss, writing the answer back.
type Service struct {
	cache     Cache
	router    Router
	locations LocationStore
	ttl       time.Duration
	log       *zap.Logger

	inflight singleflight.Group
}

func NewService(cache Cache, router Router, locations LocationStore, ttl time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cache:     cache,
		router:    router,
		locations: locations,
		ttl:       ttl,
		log:       log,
	}
}

// TravelTime returns the route from origin to destination. Cache failures
// are logged and bypassed; router failures are returned so the caller can
// degrade.
func (s *Service) TravelTime(ctx context.Context, origin, destination uuid.UUID) (Route, error) {
	if origin == destination {
		return Route{}, nil
	}

	entry, err := s.cache.Get(ctx, origin, destination)
	if err != nil {
		s.log.Warn("travel cache read failed",
			zap.Stringer("origin", origin),
			zap.Stringer("destination", destination),
			zap.Error(err),
		)
	} else if entry != nil {
		return entry.Route, nil
	}

	// Concurrent misses for the same pair share one provider call. The call
	// does not inherit the first caller's cancellation; each caller stops
	// waiting on its own context.
	key := origin.String() + ":" + destination.String()
	ch := s.inflight.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return s.fetch(fetchCtx, origin, destination)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Route{}, res.Err
		}
		return res.Val.(Route), nil
	case <-ctx.Done():
		return Route{}, ctx.Err()
	}
}

func (s *Service) fetch(ctx context.Context, origin, destination uuid.UUID) (Route, error) {
	from, err := s.locations.GetByID(ctx, origin)
	if err != nil {
		return Route{}, fmt.Errorf("travel: load origin %s: %w", origin, err)
	}
	to, err := s.locations.GetByID(ctx, destination)
	if err != nil {
		return Route{}, fmt.Errorf("travel: load destination %s: %w", destination, err)
	}

	route, err := s.router.Route(ctx,
		Point{Lat: from.Latitude, Lng: from.Longitude},
		Point{Lat: to.Latitude, Lng: to.Longitude},
	)
	if err != nil {
		return Route{}, fmt.Errorf("travel: route %s -> %s: %w", origin, destination, err)
	}

	if err := s.cache.Set(ctx, origin, destination, route, s.ttl); err != nil {
		s.log.Warn("travel cache write failed",
			zap.Stringer("origin", origin),
			zap.Stringer("destination", destination),
			zap.Error(err),
		)
	}
	return route, nil
}
