package travel

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// testRedis connects to TEST_REDIS_ADDR on a scratch database that is
// flushed afterwards. Tests skip when no server is configured.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis at %s unavailable: %v", addr, err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestRedisCache_TTL(t *testing.T) {
	clock := newClock()
	assertCacheTTL(t, NewRedisCache(testRedis(t), clock), clock)
}

func TestRedisCache_KeyExpiresWithEntry(t *testing.T) {
	ctx := context.Background()
	client := testRedis(t)
	cache := NewRedisCache(client, newClock())
	a, b := uuid.New(), uuid.New()

	if err := cache.Set(ctx, a, b, Route{DurationMinutes: 5}, 30*time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	ttl, err := client.TTL(ctx, redisKey(a, b)).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > 30*time.Minute {
		t.Fatalf("expected key ttl within 30m, got %v", ttl)
	}
}
