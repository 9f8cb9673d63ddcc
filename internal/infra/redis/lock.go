// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"fmt"
	"time"

	"protagonist-billing/internal/domain"
	"protagonist-billing/internal/usecase"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var _ usecase.CheckLocker = (*RedisLocker)(nil)

// RedisLocker is a best-effort distributed lock over SetNX. The pre-billing
// check also guards itself with a conditional write at the database, so a
// lost lock degrades to a wasted re-check, never a double refund.
type RedisLocker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < 5; i++ { // 5 tries
		if i > 0 {
			time.Sleep(50 * time.Millisecond) // wait before retrying
		}
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		if ok {
			return token, nil
		}
	}
	// A transport failure is not "someone else holds the lock"; the caller
	// must be able to tell a busy check from a dead Redis.
	if lastErr != nil {
		return "", fmt.Errorf("acquire lock %q: %w", key, lastErr)
	}
	return "", domain.ErrCheckInProgress
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
