package travel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
)

// GormCache persists routes in the travel_cache table.
type GormCache struct {
	db    *gorm.DB
	clock calendar.Clock
}

func NewGormCache(db *gorm.DB, clock calendar.Clock) *GormCache {
	if clock == nil {
		clock = calendar.SystemClock
	}
	return &GormCache{db: db, clock: clock}
}

func (c *GormCache) Get(ctx context.Context, origin, destination uuid.UUID) (*Entry, error) {
	const op = "travel.GormCache.Get"

	var row model.TravelCacheEntry
	err := c.db.WithContext(ctx).
		Where("origin_location_id = ? AND destination_location_id = ?", origin, destination).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := c.clock.Now().UTC()
	if row.Expired(now) {
		// Lazy eviction. The expires_at guard keeps a row refreshed by a
		// concurrent Set.
		err := c.db.WithContext(ctx).
			Where("origin_location_id = ? AND destination_location_id = ? AND expires_at < ?", origin, destination, now).
			Delete(&model.TravelCacheEntry{}).Error
		if err != nil {
			return nil, fmt.Errorf("%s: evict: %w", op, err)
		}
		return nil, nil
	}

	return &Entry{
		Route: Route{
			DurationMinutes: row.DurationMinutes,
			DistanceMeters:  row.DistanceMeters,
			Estimated:       row.Estimated,
		},
		FetchedAt: row.FetchedAt,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

func (c *GormCache) Set(ctx context.Context, origin, destination uuid.UUID, route Route, ttl time.Duration) error {
	const op = "travel.GormCache.Set"

	e := newEntry(route, c.clock.Now().UTC(), ttl)
	row := model.TravelCacheEntry{
		OriginLocationID:      origin,
		DestinationLocationID: destination,
		DurationMinutes:       e.DurationMinutes,
		DistanceMeters:        e.DistanceMeters,
		Estimated:             e.Estimated,
		FetchedAt:             e.FetchedAt,
		ExpiresAt:             e.ExpiresAt,
	}

	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "origin_location_id"}, {Name: "destination_location_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"duration_minutes", "distance_meters", "estimated", "fetched_at", "expires_at",
			}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
