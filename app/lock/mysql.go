package lock

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// mysqlMaxLockName is the GET_LOCK name limit.
const mysqlMaxLockName = 64

// MySQLLocker maps keys onto named advisory locks. A named lock belongs to a
// session, so every held key pins one pooled connection until Release.
//
// GET_LOCK is called with a zero timeout: contention is reported at once and
// waiting is left to AcquireWithRetry. The TTL is not enforced by MySQL; the
// lock ends with Release or with the session.
type MySQLLocker struct {
	db *sql.DB

	mu       sync.Mutex
	sessions map[string]*sql.Conn
}

// NewMySQLLocker constructs a lock manager for deployments without Redis.
func NewMySQLLocker(db *sql.DB) *MySQLLocker {
	return &MySQLLocker{db: db, sessions: make(map[string]*sql.Conn)}
}

func (l *MySQLLocker) Acquire(ctx context.Context, key string, _ time.Duration) error {
	// Reserve the key first so two goroutines never both reach GET_LOCK.
	l.mu.Lock()
	if _, busy := l.sessions[key]; busy {
		l.mu.Unlock()
		return ErrAlreadyHeld
	}
	l.sessions[key] = nil
	l.mu.Unlock()

	session, err := l.acquire(ctx, key)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		delete(l.sessions, key)
		return err
	}
	l.sessions[key] = session
	return nil
}

func (l *MySQLLocker) acquire(ctx context.Context, key string) (*sql.Conn, error) {
	session, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("mysql lock session: %w", err)
	}

	var got sql.NullInt64
	if err := session.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", lockName(key)).Scan(&got); err != nil {
		// GET_LOCK may have run before the error; only ending the session
		// guarantees the lock is gone.
		discard(session)
		return nil, fmt.Errorf("mysql lock %s: %w", key, err)
	}
	if got.Int64 != 1 {
		_ = session.Close()
		return nil, ErrNotAcquired
	}
	return session, nil
}

func (l *MySQLLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	session, ok := l.sessions[key]
	if !ok || session == nil {
		l.mu.Unlock()
		return nil
	}
	delete(l.sessions, key)
	l.mu.Unlock()

	if _, err := session.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", lockName(key)); err != nil {
		discard(session)
		return fmt.Errorf("mysql unlock %s: %w", key, err)
	}
	return session.Close()
}

// discard drops the connection from the pool instead of returning it, which
// ends the session and every named lock it still holds.
func discard(session *sql.Conn) {
	_ = session.Raw(func(any) error { return driver.ErrBadConn })
	_ = session.Close()
}

// lockName hashes keys that exceed the GET_LOCK name limit.
func lockName(key string) string {
	if len(key) <= mysqlMaxLockName {
		return key
	}
	sum := sha1.Sum([]byte(key))
	return "messaging:" + hex.EncodeToString(sum[:])
}
