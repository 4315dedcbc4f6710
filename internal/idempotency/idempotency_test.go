package idempotency

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	scope, key := "user:1", uuid.NewString()

	ok, err := s.TryLock(ctx, scope, key)
	if err != nil || !ok {
		t.Fatalf("first TryLock: ok=%v err=%v", ok, err)
	}
	ok, _ = s.TryLock(ctx, scope, key)
	if ok {
		t.Fatalf("second TryLock on an in-flight key must fail")
	}
	if _, found, _ := s.Recall(ctx, scope, key); found {
		t.Fatalf("nothing should be remembered yet")
	}

	if err := s.Release(ctx, scope, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, _ = s.TryLock(ctx, scope, key)
	if !ok {
		t.Fatalf("released key should be claimable again")
	}

	if err := s.Remember(ctx, scope, key, "42"); err != nil {
		t.Fatalf("remember: %v", err)
	}
	v, found, err := s.Recall(ctx, scope, key)
	if err != nil || !found || v != "42" {
		t.Fatalf("recall: v=%q found=%v err=%v", v, found, err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	ctx := context.Background()
	_, _ = s.TryLock(ctx, "user:1", "k")
	_ = s.Remember(ctx, "user:1", "k", "7")

	now = now.Add(2 * time.Minute)
	if _, found, _ := s.Recall(ctx, "user:1", "k"); found {
		t.Fatalf("expected entry to expire")
	}
	if ok, _ := s.TryLock(ctx, "user:1", "k"); !ok {
		t.Fatalf("expired key should be claimable")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("SHOP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SHOP_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	exerciseStore(t, NewRedisStore(rdb, time.Minute))
}
