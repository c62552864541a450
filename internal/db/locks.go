package db

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
)

// AdvisoryLock is a session-scoped Postgres advisory lock pinned to a
// dedicated connection so the unlock runs on the session that locked.
type AdvisoryLock struct {
	conn *sql.Conn
	key  int64
}

// LockKey derives a stable advisory lock key from a job name.
func LockKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}

// TryAdvisoryLock attempts to take the advisory lock for key without
// blocking. The boolean reports whether the lock was acquired; when it
// was, the caller must Release.
func TryAdvisoryLock(ctx context.Context, key int64) (*AdvisoryLock, bool, error) {
	conn, err := DB.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock connection: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}
	return &AdvisoryLock{conn: conn, key: key}, true, nil
}

// Release unlocks and returns the connection to the pool.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	if closeErr := l.conn.Close(); err == nil {
		err = closeErr
	}
	return err
}
