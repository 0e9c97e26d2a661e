package travel

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kcirtapfromspace/offleash-sub002/internal/db"
	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)}
}

func assertCacheTTL(t *testing.T, cache Cache, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	if e, err := cache.Get(ctx, a, b); err != nil || e != nil {
		t.Fatalf("expected miss on empty cache, got %+v, %v", e, err)
	}

	route := Route{DurationMinutes: 12, DistanceMeters: 3400}
	if err := cache.Set(ctx, a, b, route, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	e, err := cache.Get(ctx, a, b)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e == nil || e.Route != route {
		t.Fatalf("expected %+v right after set, got %+v", route, e)
	}

	// ordered pair: B->A is a different key
	if e, err := cache.Get(ctx, b, a); err != nil || e != nil {
		t.Fatalf("expected miss for reverse pair, got %+v, %v", e, err)
	}

	clock.Advance(time.Hour + time.Second)
	if e, err := cache.Get(ctx, a, b); err != nil || e != nil {
		t.Fatalf("expected miss after ttl, got %+v, %v", e, err)
	}

	// last write wins
	if err := cache.Set(ctx, a, b, Route{DurationMinutes: 20}, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := cache.Set(ctx, a, b, Route{DurationMinutes: 25}, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	e, err = cache.Get(ctx, a, b)
	if err != nil || e == nil || e.DurationMinutes != 25 {
		t.Fatalf("expected last write to win, got %+v, %v", e, err)
	}
}

func TestMemoryCache_TTL(t *testing.T) {
	clock := newClock()
	cache := NewMemoryCache(clock)
	assertCacheTTL(t, cache, clock)
}

func TestMemoryCache_EvictsExpiredOnRead(t *testing.T) {
	clock := newClock()
	cache := NewMemoryCache(clock)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	if err := cache.Set(ctx, a, b, Route{DurationMinutes: 5}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	clock.Advance(2 * time.Minute)
	if _, err := cache.Get(ctx, a, b); err != nil {
		t.Fatalf("get: %v", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected expired entry to be evicted, len=%d", cache.Len())
	}
}

func TestGormCache_TTL(t *testing.T) {
	gdb, err := db.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clock := newClock()
	assertCacheTTL(t, NewGormCache(gdb, clock), clock)

	var rows int64
	if err := gdb.Model(&model.TravelCacheEntry{}).Count(&rows).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single row after upserts, got %d", rows)
	}
}

func TestDistanceKm(t *testing.T) {
	// Denver Union Station to Coors Field, roughly 0.6 km apart.
	km := DistanceKm(39.7527, -105.0001, 39.7559, -104.9942)
	if km < 0.5 || km > 1.0 {
		t.Fatalf("unexpected distance %.3f km", km)
	}
	if DistanceKm(10, 10, 10, 10) != 0 {
		t.Fatalf("expected zero distance for the same point")
	}
}

func TestHaversineRouter_IsEstimated(t *testing.T) {
	r := NewHaversineRouter(30)
	route, err := r.Route(context.Background(), Point{Lat: 0, Lng: 0}, Point{Lat: 0, Lng: 0.1})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !route.Estimated {
		t.Fatalf("haversine routes must be estimated")
	}
	// 0.1 degree of longitude at the equator is ~11.1 km, 22.2 min at 30 km/h
	if route.DurationMinutes != 23 {
		t.Fatalf("duration = %d, want 23", route.DurationMinutes)
	}
	if math.Abs(float64(route.DistanceMeters)-11119) > 5 {
		t.Fatalf("distance = %d, want ~11119", route.DistanceMeters)
	}
}

func TestHTTPRouter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req routeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Origin.Lat != 1 || req.Destination.Lng != 4 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"duration_minutes":14,"distance_meters":5100}`))
	}))
	defer srv.Close()

	route, err := NewHTTPRouter(srv.URL, "secret", time.Second).
		Route(context.Background(), Point{Lat: 1, Lng: 2}, Point{Lat: 3, Lng: 4})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if route.DurationMinutes != 14 || route.DistanceMeters != 5100 || route.Estimated {
		t.Fatalf("unexpected route %+v", route)
	}

	_, err = NewHTTPRouter(srv.URL, "wrong", time.Second).
		Route(context.Background(), Point{Lat: 1, Lng: 2}, Point{Lat: 3, Lng: 4})
	if !errors.Is(err, ErrRouteUnavailable) {
		t.Fatalf("expected ErrRouteUnavailable, got %v", err)
	}
}

type stubLocations map[uuid.UUID]*model.Location

func (s stubLocations) GetByID(_ context.Context, id uuid.UUID) (*model.Location, error) {
	l, ok := s[id]
	if !ok {
		return nil, errors.New("location not found")
	}
	return l, nil
}

type countingRouter struct {
	calls atomic.Int32
	route Route
	err   error
}

func (r *countingRouter) Route(context.Context, Point, Point) (Route, error) {
	r.calls.Add(1)
	return r.route, r.err
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, uuid.UUID, uuid.UUID) (*Entry, error) {
	return nil, errors.New("cache down")
}

func (brokenCache) Set(context.Context, uuid.UUID, uuid.UUID, Route, time.Duration) error {
	return errors.New("cache down")
}

func twoLocations() (uuid.UUID, uuid.UUID, stubLocations) {
	a := &model.Location{ID: uuid.New(), Latitude: 39.75, Longitude: -105.0}
	b := &model.Location{ID: uuid.New(), Latitude: 39.76, Longitude: -104.99}
	return a.ID, b.ID, stubLocations{a.ID: a, b.ID: b}
}

func TestService_MissFetchesAndWritesBack(t *testing.T) {
	ctx := context.Background()
	a, b, locs := twoLocations()
	router := &countingRouter{route: Route{DurationMinutes: 9, DistanceMeters: 2000}}
	cache := NewMemoryCache(newClock())
	svc := NewService(cache, router, locs, time.Hour, nil)

	for i := 0; i < 3; i++ {
		route, err := svc.TravelTime(ctx, a, b)
		if err != nil {
			t.Fatalf("travel time: %v", err)
		}
		if route.DurationMinutes != 9 {
			t.Fatalf("duration = %d, want 9", route.DurationMinutes)
		}
	}
	if router.calls.Load() != 1 {
		t.Fatalf("expected a single provider call, got %d", router.calls.Load())
	}
}

func TestService_SameLocationIsZero(t *testing.T) {
	a, _, locs := twoLocations()
	router := &countingRouter{route: Route{DurationMinutes: 9}}
	svc := NewService(NewMemoryCache(newClock()), router, locs, time.Hour, nil)

	route, err := svc.TravelTime(context.Background(), a, a)
	if err != nil || route.DurationMinutes != 0 {
		t.Fatalf("expected zero travel, got %+v, %v", route, err)
	}
	if router.calls.Load() != 0 {
		t.Fatalf("router should not be called")
	}
}

func TestService_CacheFailureFallsThroughToRouter(t *testing.T) {
	a, b, locs := twoLocations()
	router := &countingRouter{route: Route{DurationMinutes: 7}}
	svc := NewService(brokenCache{}, router, locs, time.Hour, nil)

	route, err := svc.TravelTime(context.Background(), a, b)
	if err != nil {
		t.Fatalf("expected cache errors to be swallowed, got %v", err)
	}
	if route.DurationMinutes != 7 {
		t.Fatalf("duration = %d, want 7", route.DurationMinutes)
	}
}

func TestService_RouterFailureIsReturned(t *testing.T) {
	a, b, locs := twoLocations()
	router := &countingRouter{err: ErrRouteUnavailable}
	cache := NewMemoryCache(newClock())
	svc := NewService(cache, router, locs, time.Hour, nil)

	if _, err := svc.TravelTime(context.Background(), a, b); !errors.Is(err, ErrRouteUnavailable) {
		t.Fatalf("expected ErrRouteUnavailable, got %v", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("failed lookups must not be cached")
	}
}

// gatedRouter blocks every lookup until release is closed and fails if the
// lookup's own context ends first.
type gatedRouter struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *gatedRouter) Route(ctx context.Context, _, _ Point) (Route, error) {
	r.calls.Add(1)
	r.once.Do(func() { close(r.entered) })
	select {
	case <-r.release:
		return Route{DurationMinutes: 11}, nil
	case <-ctx.Done():
		return Route{}, ctx.Err()
	}
}

func TestService_CancelledCallerDoesNotFailSharedLookup(t *testing.T) {
	a, b, locs := twoLocations()
	router := &gatedRouter{entered: make(chan struct{}), release: make(chan struct{})}
	cache := NewMemoryCache(newClock())
	svc := NewService(cache, router, locs, time.Hour, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.TravelTime(firstCtx, a, b)
		firstErr <- err
	}()
	<-router.entered

	type result struct {
		route Route
		err   error
	}
	second := make(chan result, 1)
	go func() {
		route, err := svc.TravelTime(context.Background(), a, b)
		second <- result{route, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller: expected context.Canceled, got %v", err)
	}

	close(router.release)
	res := <-second
	if res.err != nil || res.route.DurationMinutes != 11 {
		t.Fatalf("second caller: expected 11 minutes, got %+v, %v", res.route, res.err)
	}
	if cache.Len() != 1 {
		t.Fatalf("shared lookup should have been cached after the first caller left")
	}
	if router.calls.Load() != 1 {
		t.Fatalf("expected one provider call, got %d", router.calls.Load())
	}
}
