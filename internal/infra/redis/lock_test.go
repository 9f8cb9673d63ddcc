//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"protagonist-billing/internal/domain"
)

func TestTryLock_TransportErrorIsNotBusy(t *testing.T) {
	cli := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1", // nothing listens here
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer cli.Close()
	l := &RedisLocker{cli: cli}

	_, err := l.TryLock(context.Background(), "refund-check:user-1:2026-08", time.Minute)
	if err == nil {
		t.Fatal("expected an error from an unreachable Redis")
	}
	if errors.Is(err, domain.ErrCheckInProgress) {
		t.Fatalf("transport failure must not masquerade as a busy lock: %v", err)
	}
}
