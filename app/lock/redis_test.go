package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisLockerAcquireRelease(t *testing.T) {
	t.Parallel()
	mr, client := newRedisClient(t)

	replicaA := NewRedisLocker(client)
	replicaB := NewRedisLocker(client)
	ctx := context.Background()

	if err := replicaA.Acquire(ctx, statusKey, time.Minute); err != nil {
		t.Fatalf("Acquire A: %v", err)
	}
	if ttl := mr.TTL(statusKey); ttl != time.Minute {
		t.Fatalf("expected 1m TTL, got %s", ttl)
	}
	if err := replicaB.Acquire(ctx, statusKey, time.Minute); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
	if err := replicaA.Release(ctx, statusKey); err != nil {
		t.Fatalf("Release A: %v", err)
	}
	if mr.Exists(statusKey) {
		t.Fatalf("expected key deleted on release")
	}
	if err := replicaB.Acquire(ctx, statusKey, time.Minute); err != nil {
		t.Fatalf("Acquire B after release: %v", err)
	}
}

func TestRedisLockerAlreadyHeld(t *testing.T) {
	t.Parallel()
	_, client := newRedisClient(t)

	locker := NewRedisLocker(client)
	if err := locker.Acquire(context.Background(), statusKey, time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := locker.Acquire(context.Background(), statusKey, time.Minute); !errors.Is(err, ErrAlreadyHeld) {
		t.Fatalf("expected ErrAlreadyHeld, got %v", err)
	}
}

func TestRedisLockerExpiredClaimKeepsNextOwner(t *testing.T) {
	t.Parallel()
	mr, client := newRedisClient(t)
	ctx := context.Background()

	slow := NewRedisLocker(client)
	fast := NewRedisLocker(client)

	if err := slow.Acquire(ctx, statusKey, time.Second); err != nil {
		t.Fatalf("Acquire slow: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if err := fast.Acquire(ctx, statusKey, time.Minute); err != nil {
		t.Fatalf("Acquire fast after expiry: %v", err)
	}
	if err := slow.Release(ctx, statusKey); err != nil {
		t.Fatalf("Release slow: %v", err)
	}
	if !mr.Exists(statusKey) {
		t.Fatalf("stale owner must not delete the current claim")
	}
}

func TestRedisLockerBackendError(t *testing.T) {
	t.Parallel()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	locker := NewRedisLocker(client)
	err = locker.Acquire(context.Background(), statusKey, time.Minute)
	if err == nil || errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected a backend error, got %v", err)
	}
	// The failed claim must not block a later attempt with ErrAlreadyHeld.
	if err := locker.Acquire(context.Background(), statusKey, time.Minute); errors.Is(err, ErrAlreadyHeld) {
		t.Fatalf("failed claim leaked: %v", err)
	}
}
