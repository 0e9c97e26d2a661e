package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrLocked = errors.New("resource is locked")

// Locker is a try-lock keyed by string. Lock returns ok=false when the key
// is held by someone else; the token must be passed back to Unlock.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

const retryInterval = 25 * time.Millisecond

// Acquire polls l until the key is taken, wait elapses or ctx is done. The
// returned release func is safe to call once.
func Acquire(ctx context.Context, l Locker, key string, ttl, wait time.Duration) (func(context.Context) error, error) {
	const op = "lock.Acquire"

	deadline := time.Now().Add(wait)
	for {
		token, ok, err := l.Lock(ctx, key, ttl)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return l.Unlock(ctx, key, token)
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s: %s: %w", op, key, ErrLocked)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(retryInterval):
		}
	}
}

func newToken() string {
	return uuid.NewString()
}
