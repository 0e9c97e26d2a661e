package lock

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	token     string
	expiresAt time.Time
}

// LocalLock is the in-process Locker used when Redis is not configured.
// It only serializes callers inside one process.
type LocalLock struct {
	mu   sync.Mutex
	held map[string]localEntry
	now  func() time.Time
}

func NewLocalLock() *LocalLock {
	return &LocalLock{
		held: make(map[string]localEntry),
		now:  time.Now,
	}
}

func (l *LocalLock) Lock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expiresAt) {
		return "", false, nil
	}

	token := newToken()
	l.held[key] = localEntry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalLock) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.held[key]; ok && e.token == token {
		delete(l.held, key)
	}
	return nil
}
