package travel

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
)

type pairKey struct {
	origin      uuid.UUID
	destination uuid.UUID
}

// MemoryCache keeps routes in process memory.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[pairKey]Entry
	clock   calendar.Clock
}

func NewMemoryCache(clock calendar.Clock) *MemoryCache {
	if clock == nil {
		clock = calendar.SystemClock
	}
	return &MemoryCache{
		entries: make(map[pairKey]Entry),
		clock:   clock,
	}
}

func (c *MemoryCache) Get(_ context.Context, origin, destination uuid.UUID) (*Entry, error) {
	key := pairKey{origin: origin, destination: destination}
	now := c.clock.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if e.Expired(now) {
		c.mu.Lock()
		// a concurrent Set may have refreshed it in between
		if cur, ok := c.entries[key]; ok && cur.Expired(now) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, nil
	}
	return &e, nil
}

func (c *MemoryCache) Set(_ context.Context, origin, destination uuid.UUID, route Route, ttl time.Duration) error {
	e := newEntry(route, c.clock.Now(), ttl)

	c.mu.Lock()
	c.entries[pairKey{origin: origin, destination: destination}] = e
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
