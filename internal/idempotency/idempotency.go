// Package idempotency remembers the outcome of keyed requests so a client
// retrying the same request gets the original result.
package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store tracks in-flight and completed keys within a scope (usually a user).
type Store interface {
	// TryLock claims key. It returns false if the key is already claimed.
	TryLock(ctx context.Context, scope, key string) (bool, error)
	// Remember records the result for a claimed key.
	Remember(ctx context.Context, scope, key, value string) error
	// Recall returns the remembered result, if any.
	Recall(ctx context.Context, scope, key string) (string, bool, error)
	// Release drops the claim so a failed request can be retried.
	Release(ctx context.Context, scope, key string) error
}

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) TryLock(ctx context.Context, scope, key string) (bool, error) {
	return s.rdb.SetNX(ctx, "idemp:"+scope+":"+key, "1", s.ttl).Result()
}

func (s *RedisStore) Remember(ctx context.Context, scope, key, value string) error {
	return s.rdb.Set(ctx, "idemp:map:"+scope+":"+key, value, s.ttl).Err()
}

func (s *RedisStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, "idemp:map:"+scope+":"+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	return val, err == nil, err
}

func (s *RedisStore) Release(ctx context.Context, scope, key string) error {
	return s.rdb.Del(ctx, "idemp:"+scope+":"+key).Err()
}

type memEntry struct {
	value   string
	done    bool
	expires time.Time
}

// MemoryStore is the single-instance Store.
type MemoryStore struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]memEntry
	now func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, m: make(map[string]memEntry), now: time.Now}
}

func (s *MemoryStore) get(k string) (memEntry, bool) {
	e, ok := s.m[k]
	if ok && s.ttl > 0 && s.now().After(e.expires) {
		delete(s.m, k)
		return memEntry{}, false
	}
	return e, ok
}

func (s *MemoryStore) TryLock(_ context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scope + ":" + key
	if _, ok := s.get(k); ok {
		return false, nil
	}
	s.m[k] = memEntry{expires: s.now().Add(s.ttl)}
	return true, nil
}

func (s *MemoryStore) Remember(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[scope+":"+key] = memEntry{value: value, done: true, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Recall(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.get(scope + ":" + key)
	if !ok || !e.done {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Release(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scope + ":" + key
	if e, ok := s.m[k]; ok && !e.done {
		delete(s.m, k)
	}
	return nil
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
