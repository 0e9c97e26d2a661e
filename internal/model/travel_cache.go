package model

import (
	"time"

	"github.com/google/uuid"
)

// TravelCacheEntry caches the travel time for an ordered pair of locations.
// A to B and B to A are separate rows.
type TravelCacheEntry struct {
	OriginLocationID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	DestinationLocationID uuid.UUID `gorm:"type:uuid;primaryKey"`

	DurationMinutes int `gorm:"not null"`
	DistanceMeters  int `gorm:"not null"`

	// Estimated marks values that did not come from the routing provider.
	Estimated bool `gorm:"not null"`

	FetchedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (TravelCacheEntry) TableName() string {
	return "travel_cache"
}

// Expired reports whether the entry is stale at now.
func (e TravelCacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
