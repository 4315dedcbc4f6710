package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := NewLocal()
	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		counter int
	)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			unlock, err := l.Lock(ctx, "cart:1")
			if err != nil {
				return err
			}
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			counter++ // guarded by the keyed lock

			mu.Lock()
			inside--
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if maxSeen != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxSeen)
	}
	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}
	if l.Len() != 0 {
		t.Fatalf("expected entries to be released, %d left", l.Len())
	}
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	unlockA, err := l.Lock(context.Background(), "cart:1")
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(ctx, "cart:2")
	if err != nil {
		t.Fatalf("lock on another key should not block: %v", err)
	}
	unlockB()
}

func TestLocal_TimesOutWhenHeld(t *testing.T) {
	l := NewLocal()
	unlock, _ := l.Lock(context.Background(), "cart:1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "cart:1"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected busy error, got %v", err)
	}

	unlock()
	unlock() // second call is a no-op
	if l.Len() != 0 {
		t.Fatalf("expected no tracked keys, got %d", l.Len())
	}
}

func TestRedis_ExcludesConcurrentHolders(t *testing.T) {
	addr := os.Getenv("SHOP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SHOP_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	l := NewRedis(rdb, time.Second)
	unlock, err := l.Lock(context.Background(), "test:cart:1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "test:cart:1"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected busy, got %v", err)
	}

	unlock()
	unlock2, err := l.Lock(context.Background(), "test:cart:1")
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	unlock2()
}
