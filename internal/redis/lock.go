package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another request already owns the resource.
var ErrLockHeld = errors.New("lock already held by another request")

const lockPrefix = "canteen:lock:"

// releaseScript deletes the key only if it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

type Locker struct {
	client *goredis.Client
}

func NewLocker(client *goredis.Client) *Locker {
	return &Locker{client: client}
}

func (l *Locker) Acquire(ctx context.Context, resource string, ttl time.Duration) (func(), error) {
	key := lockPrefix + resource
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", resource, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return func() {
		// the caller's context may already be done
		_ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Err()
	}, nil
}
