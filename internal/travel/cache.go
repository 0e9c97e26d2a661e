package travel

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Route is a travel estimate between two locations.
type Route struct {
	DurationMinutes int  `json:"duration_minutes"`
	DistanceMeters  int  `json:"distance_meters"`
	Estimated       bool `json:"estimated"`
}

// Entry is a cached route with its freshness window.
type Entry struct {
	Route
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is stale at now.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Cache stores routes per ordered (origin, destination) pair.
//
// Get returns (nil, nil) when there is no entry or the entry has expired.
// Set overwrites whatever is stored for the pair.
type Cache interface {
	Get(ctx context.Context, origin, destination uuid.UUID) (*Entry, error)
	Set(ctx context.Context, origin, destination uuid.UUID, route Route, ttl time.Duration) error
}

func newEntry(route Route, now time.Time, ttl time.Duration) Entry {
	return Entry{
		Route:     route,
		FetchedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}
