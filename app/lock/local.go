package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker serializes keys inside a single process. TTLs are honoured so a
// holder that never releases does not block the key forever.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLocalLocker constructs an in-process lock manager.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Acquire takes the key unless another holder has an unexpired claim on it.
func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return ErrNotAcquired
	}
	l.held[key] = now.Add(ttl)
	return nil
}

// Release frees the key.
func (l *LocalLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
	return nil
}
