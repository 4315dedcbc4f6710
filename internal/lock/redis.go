package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	baseBackoff = 10 * time.Millisecond
	maxBackoff  = 200 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a lease lock built on SET NX PX. The lease bounds how long a
// crashed holder can block others.
type Redis struct {
	rdb   *redis.Client
	lease time.Duration
}

func NewRedis(rdb *redis.Client, lease time.Duration) *Redis {
	if lease <= 0 {
		lease = 10 * time.Second
	}
	return &Redis{rdb: rdb, lease: lease}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := "lock:" + key
	token := uuid.NewString()

	backoff := baseBackoff
	for {
		ok, err := r.rdb.SetNX(ctx, k, token, r.lease).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrBusy
			}
			return nil, err
		}
		if ok {
			break
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ErrBusy
		case <-t.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return func() {
		// release with a fresh context so a cancelled request still unlocks
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.rdb, []string{k}, token).Err()
	}, nil
}
