package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// compareAndDelete removes KEYS[1] only while it still stores ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker takes keys with SET NX PX. Each claim stores a fresh owner id so
// a replica whose claim expired cannot delete the next holder's key.
type RedisLocker struct {
	client redis.UniversalClient

	mu     sync.Mutex
	owners map[string]string
}

// NewRedisLocker constructs a lock manager shared by all webhook workers.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client, owners: make(map[string]string)}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	owner := uuid.NewString()
	if !l.claim(key, owner) {
		return ErrAlreadyHeld
	}

	err := l.client.SetArgs(ctx, key, owner, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	switch {
	case err == nil:
		return nil
	case err == redis.Nil:
		l.forget(key)
		return ErrNotAcquired
	default:
		l.forget(key)
		return fmt.Errorf("redis lock %s: %w", key, err)
	}
}

// Release deletes the key when this process still owns it. Releasing a key
// that was never taken here is a no-op.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	owner, ok := l.forget(key)
	if !ok {
		return nil
	}
	if err := compareAndDelete.Run(ctx, l.client, []string{key}, owner).Err(); err != nil {
		return fmt.Errorf("redis unlock %s: %w", key, err)
	}
	return nil
}

func (l *RedisLocker) claim(key, owner string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.owners[key]; taken {
		return false
	}
	l.owners[key] = owner
	return true
}

func (l *RedisLocker) forget(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.owners[key]
	delete(l.owners, key)
	return owner, ok
}
