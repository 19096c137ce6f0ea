package lock

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrAlreadyHeld = errors.New("lock already held by this process")
var ErrNotAcquired = errors.New("lock not acquired")

// Locker abstracts distributed locking implementations.
type Locker interface {
	// Acquire attempts to lock a key for the given TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) error
	// Release frees the lock for the given key.
	Release(ctx context.Context, key string) error
}

// Retry controls how AcquireWithRetry waits for a contended key.
type Retry struct {
	Attempts int
	Interval time.Duration
}

var DefaultRetry = Retry{Attempts: 50, Interval: 20 * time.Millisecond}

// AcquireWithRetry keeps trying a contended key until it is acquired, the
// attempts run out or ctx is done. Errors other than contention return at once.
func AcquireWithRetry(ctx context.Context, locker Locker, key string, ttl time.Duration, retry Retry) error {
	attempts := retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = locker.Acquire(ctx, key, ttl)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotAcquired) && !errors.Is(err, ErrAlreadyHeld) {
			return err
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(retry.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// Key joins parts into a namespaced lock key.
func Key(parts ...string) string {
	return "messaging:" + strings.Join(parts, ":")
}
