package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocalLock_ExclusiveUntilUnlock(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLock()

	token, ok, err := l.Lock(ctx, "walker:1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := l.Lock(ctx, "walker:1", time.Minute); ok {
		t.Fatalf("second lock on the same key must fail")
	}
	if _, ok, _ := l.Lock(ctx, "walker:2", time.Minute); !ok {
		t.Fatalf("other keys must be independent")
	}

	// a stale token does not release someone else's lock
	if err := l.Unlock(ctx, "walker:1", "not-the-token"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, ok, _ := l.Lock(ctx, "walker:1", time.Minute); ok {
		t.Fatalf("lock released by a foreign token")
	}

	if err := l.Unlock(ctx, "walker:1", token); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, ok, _ := l.Lock(ctx, "walker:1", time.Minute); !ok {
		t.Fatalf("expected lock after unlock")
	}
}

func TestLocalLock_Expires(t *testing.T) {
	now := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	l := NewLocalLock()
	l.now = func() time.Time { return now }

	if _, ok, _ := l.Lock(context.Background(), "k", time.Second); !ok {
		t.Fatalf("expected lock")
	}
	now = now.Add(2 * time.Second)
	if _, ok, _ := l.Lock(context.Background(), "k", time.Second); !ok {
		t.Fatalf("expected expired lock to be taken over")
	}
}

func TestAcquire_SerializesCallers(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLock()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := Acquire(ctx, l, "walker:1", time.Second, 5*time.Second)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			_ = release(ctx)
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxSeen)
	}
}

func TestAcquire_TimesOut(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLock()
	if _, ok, _ := l.Lock(ctx, "k", time.Minute); !ok {
		t.Fatalf("expected lock")
	}

	_, err := Acquire(ctx, l, "k", time.Minute, 50*time.Millisecond)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}
