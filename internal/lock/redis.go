package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"clinicbook/internal/model"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker shares slot locks between service instances.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedisLocker creates a locker whose keys expire after ttl and whose
// callers wait at most wait.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: "clinicbook:",
		ttl:    ttl,
		wait:   wait,
		retry:  25 * time.Millisecond,
	}
}

// Lock polls SET NX until key is taken or the wait bound passes. Release
// deletes the key only while it still holds this caller's token.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	name := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w: %w", key, model.ErrTransient, err)
		}
		if ok {
			break
		}
		if !time.Now().Add(l.retry).Before(deadline) {
			return nil, timeoutErr(key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// An expired lock may already belong to someone else; the script
		// leaves it alone.
		_ = releaseScript.Run(releaseCtx, l.client, []string{name}, token).Err()
	}, nil
}
