// Package lock provides a redis-backed mutual exclusion lock keyed by string,
// used to serialize check-then-write sequences across service instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "teammatch:lock:"
	retryInterval = 50 * time.Millisecond
)

var (
	ErrNotObtained = errors.New("lock not obtained")
	ErrNotHeld     = errors.New("lock not held")
)

// Locker hands out locks by key.
type Locker interface {
	Obtain(ctx context.Context, key string) (Lock, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait}
}

// Obtain retries SET NX until it succeeds, wait elapses or ctx is done.
func (l *RedisLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	token := uuid.NewString()
	fullKey := keyPrefix + key

	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
		}
		if ok {
			return &redisLock{client: l.client, key: fullKey, token: token}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrNotObtained
		}

		timer := time.NewTimer(retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// NopLocker grants every lock immediately. It backs deployments without redis,
// where database unique indexes are the only guard.
type NopLocker struct{}

func (NopLocker) Obtain(context.Context, string) (Lock, error) { return nopLock{}, nil }

type nopLock struct{}

func (nopLock) Release(context.Context) error { return nil }

// Key helpers keep lock names in one place.
func TeamKey(teamID int64) string        { return fmt.Sprintf("team:%d", teamID) }
func OwnerKey(userID int64) string       { return fmt.Sprintf("owner:%d", userID) }
func MemberKey(userID int64) string      { return fmt.Sprintf("member:%d", userID) }
func UsernameKey(username string) string { return "username:" + username }
