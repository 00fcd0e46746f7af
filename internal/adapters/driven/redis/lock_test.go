package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func mustAcquire(t *testing.T, lock *Lock, name string, ttl time.Duration) {
	t.Helper()
	acquired, err := lock.Acquire(context.Background(), name, ttl)
	if err != nil {
		t.Fatalf("Acquire(%s) failed: %v", name, err)
	}
	if !acquired {
		t.Fatalf("expected to acquire %s", name)
	}
}

func TestLockOwnerIDs(t *testing.T) {
	client := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if lock1.OwnerID() == "" {
		t.Error("expected non-empty owner ID")
	}
	if lock1.OwnerID() == lock2.OwnerID() {
		t.Errorf("expected unique owner IDs, got same: %s", lock1.OwnerID())
	}
}

func TestLockAcquireContention(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	worker1 := NewLock(client)
	worker2 := NewLock(client)

	mustAcquire(t, worker1, "index:doc-1", 10*time.Second)

	// A second worker cannot claim the same document
	acquired, err := worker2.Acquire(ctx, "index:doc-1", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected second worker to be blocked")
	}

	// The holder cannot re-acquire either; the lock is not reentrant
	acquired, err = worker1.Acquire(ctx, "index:doc-1", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected reentrant acquire to fail")
	}

	// A different document is free
	mustAcquire(t, worker2, "index:doc-2", 10*time.Second)
}

func TestLockRelease(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	lock := NewLock(client)
	mustAcquire(t, lock, "index:doc-1", 10*time.Second)

	if err := lock.Release(ctx, "index:doc-1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	// Lock is free again after release
	mustAcquire(t, lock, "index:doc-1", 10*time.Second)
}

func TestLockReleaseUnheld(t *testing.T) {
	client := setupTestRedis(t)

	lock := NewLock(client)
	if err := lock.Release(context.Background(), "index:doc-1"); err != nil {
		t.Errorf("unexpected error releasing unheld lock: %v", err)
	}
}

func TestLockReleaseByDifferentOwner(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	holder := NewLock(client)
	other := NewLock(client)

	mustAcquire(t, holder, "index:doc-1", 10*time.Second)

	// Release by a non-owner must not free the holder's lock
	if err := other.Release(ctx, "index:doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acquired, err := other.Acquire(ctx, "index:doc-1", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected lock to still be held by the original owner")
	}
}

func TestLockExtend(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	lock := NewLock(client)
	mustAcquire(t, lock, "index:doc-1", 1*time.Second)

	if err := lock.Extend(ctx, "index:doc-1", 10*time.Second); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
}

func TestLockExtendNotHeld(t *testing.T) {
	client := setupTestRedis(t)

	lock := NewLock(client)
	if err := lock.Extend(context.Background(), "index:doc-1", 10*time.Second); err == nil {
		t.Error("expected error when extending unheld lock")
	}
}

func TestLockExtendByDifferentOwner(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	holder := NewLock(client)
	other := NewLock(client)

	mustAcquire(t, holder, "index:doc-1", 10*time.Second)

	if err := other.Extend(ctx, "index:doc-1", 20*time.Second); err == nil {
		t.Error("expected error when a different owner extends")
	}
}

func TestLockPing(t *testing.T) {
	client := setupTestRedis(t)

	lock := NewLock(client)
	if err := lock.Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}
