package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryStore) LockKey(name string) string { return "libronova:lock:" + name }

func TestRedisLockIsExclusive(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	first, err := NewRedisLock(store, "", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "", 0)
	if first.Key() != "libronova:lock:cron-worker" {
		t.Fatalf("unexpected key %s", first.Key())
	}

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	if store.ttls[first.Key()] != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", store.ttls[first.Key()])
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second worker must not acquire a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("non-owner release: %v", err)
	}
	if _, held := store.values[first.Key()]; !held {
		t.Fatal("non-owner release must not drop the lock")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected lock to be free after release")
	}
}

func TestRedisLockLeavesForeignOwnerAlone(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	lock, _ := NewRedisLock(store, "overdue", time.Minute)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	// simulate expiry and takeover by another worker
	store.values[lock.Key()] = "someone-else"

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values[lock.Key()] != "someone-else" {
		t.Fatal("release must not delete a lock owned by another worker")
	}
}

func TestNewRedisLockRequiresStore(t *testing.T) {
	if _, err := NewRedisLock(nil, "x", time.Second); err == nil {
		t.Fatal("expected error without store")
	}
}

func TestRedisLockTokenNamesInstance(t *testing.T) {
	t.Setenv("LIBRONOVA_INSTANCE_ID", "cron-a")
	store := newMemoryStore()
	lock, err := NewRedisLock(store, "", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if ok, err := lock.Acquire(context.Background()); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	value, err := store.Get(context.Background(), lock.Key())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.HasPrefix(value, "cron-a:") {
		t.Fatalf("expected token to start with the instance id, got %q", value)
	}
}
