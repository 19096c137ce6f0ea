package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocalLockerAcquireRelease(t *testing.T) {
	t.Parallel()

	locker := NewLocalLocker()
	ctx := context.Background()

	if err := locker.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := locker.Acquire(ctx, "k", time.Minute); err != ErrNotAcquired {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
	if err := locker.Release(ctx, "k"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := locker.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestLocalLockerExpiredClaim(t *testing.T) {
	t.Parallel()

	locker := NewLocalLocker()
	now := time.Unix(1700000000, 0)
	locker.now = func() time.Time { return now }

	if err := locker.Acquire(context.Background(), "k", time.Second); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	now = now.Add(2 * time.Second)
	if err := locker.Acquire(context.Background(), "k", time.Second); err != nil {
		t.Fatalf("expected expired claim to be taken over, got %v", err)
	}
}

func TestAcquireWithRetryWaitsForRelease(t *testing.T) {
	t.Parallel()

	locker := NewLocalLocker()
	ctx := context.Background()
	if err := locker.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(30 * time.Millisecond)
		_ = locker.Release(ctx, "k")
	}()

	if err := AcquireWithRetry(ctx, locker, "k", time.Minute, Retry{Attempts: 100, Interval: 5 * time.Millisecond}); err != nil {
		t.Fatalf("AcquireWithRetry: %v", err)
	}
	wg.Wait()
}

func TestAcquireWithRetryGivesUp(t *testing.T) {
	t.Parallel()

	locker := NewLocalLocker()
	ctx := context.Background()
	if err := locker.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	err := AcquireWithRetry(ctx, locker, "k", time.Minute, Retry{Attempts: 3, Interval: time.Millisecond})
	if !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
}

type failingLocker struct{ err error }

func (l failingLocker) Acquire(_ context.Context, _ string, _ time.Duration) error { return l.err }
func (l failingLocker) Release(_ context.Context, _ string) error                  { return nil }

func TestAcquireWithRetryReturnsBackendErrors(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("redis down")
	err := AcquireWithRetry(context.Background(), failingLocker{err: backendErr}, "k", time.Minute, DefaultRetry)
	if !errors.Is(err, backendErr) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	if got := Key("message-status", "1", "msg_123"); got != "messaging:message-status:1:msg_123" {
		t.Fatalf("unexpected key %s", got)
	}
}
