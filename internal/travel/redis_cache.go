package travel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
)

// RedisCache stores routes as JSON values whose key TTL matches the entry.
type RedisCache struct {
	client redis.Cmdable
	clock  calendar.Clock
}

func NewRedisCache(client redis.Cmdable, clock calendar.Clock) *RedisCache {
	if clock == nil {
		clock = calendar.SystemClock
	}
	return &RedisCache{client: client, clock: clock}
}

func redisKey(origin, destination uuid.UUID) string {
	return fmt.Sprintf("travel:%s:%s", origin, destination)
}

func (c *RedisCache) Get(ctx context.Context, origin, destination uuid.UUID) (*Entry, error) {
	const op = "travel.RedisCache.Get"

	raw, err := c.client.Get(ctx, redisKey(origin, destination)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	if e.Expired(c.clock.Now()) {
		return nil, nil
	}
	return &e, nil
}

func (c *RedisCache) Set(ctx context.Context, origin, destination uuid.UUID, route Route, ttl time.Duration) error {
	const op = "travel.RedisCache.Set"

	raw, err := json.Marshal(newEntry(route, c.clock.Now().UTC(), ttl))
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	if err := c.client.Set(ctx, redisKey(origin, destination), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
