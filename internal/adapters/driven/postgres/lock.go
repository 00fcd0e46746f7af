package postgres

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*AdvisoryLock)(nil)

// AdvisoryLock backs the per-document indexing lock with PostgreSQL
// advisory locks, for deployments without Redis. Advisory locks are
// session-scoped rather than TTL-based: the ttl argument is ignored,
// Extend is a no-op, and the lock falls away when the holding
// connection closes. Good enough to keep two workers off the same
// document; Redis is preferred when available.
type AdvisoryLock struct {
	db *DB
}

// NewAdvisoryLock wraps the shared database handle.
func NewAdvisoryLock(db *DB) *AdvisoryLock {
	return &AdvisoryLock{db: db}
}

// advisoryKey maps a lock name onto the 64-bit key space advisory
// locks use. FNV-1a keeps collisions between document IDs unlikely.
func advisoryKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte("astra:lock:" + name))
	return int64(h.Sum64())
}

// Acquire tries to take the lock without blocking. The ttl argument
// is ignored.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", advisoryKey(name)).Scan(&acquired)
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// Release drops the lock. Releasing a lock this session does not hold
// is a no-op, not an error.
func (l *AdvisoryLock) Release(ctx context.Context, name string) error {
	var released bool
	return l.db.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", advisoryKey(name)).Scan(&released)
}

// Extend is a no-op; advisory locks are held until released or until
// the session ends.
func (l *AdvisoryLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	return nil
}

// Ping reports whether the database is reachable.
func (l *AdvisoryLock) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
