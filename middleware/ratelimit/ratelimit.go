// Package ratelimit implements a redis fixed-window request limiter.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopher0727/TeamMatch/config"
	logger "github.com/Gopher0727/TeamMatch/middleware/log"
)

const keyPrefix = "teammatch:ratelimit:"

// Limiter defines the interface for rate limiting operations
type Limiter interface {
	// Allow reports whether one more request fits into the current window.
	Allow(ctx context.Context, key string, rule Rule) (bool, error)

	// Remaining returns how many requests are left in the current window.
	Remaining(ctx context.Context, key string, rule Rule) (int, error)

	// Reset clears the current window for key.
	Reset(ctx context.Context, key string, rule Rule) error
}

// Rule is a request budget per window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// FixedWindowLimiter counts requests per (key, window bucket) with INCRBY.
// With failOpen set, redis errors let the request through.
type FixedWindowLimiter struct {
	client   *redis.Client
	log      *logger.Logger
	failOpen bool
	now      func() time.Time
}

// NewFixedWindowLimiter creates a limiter backed by client.
//
// Parameters:
//   - client: Redis client for storing counters
//   - log: Logger for recording rejections and redis failures
//   - failOpen: If true, allows requests when Redis fails
func NewFixedWindowLimiter(client *redis.Client, log *logger.Logger, failOpen bool) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		client:   client,
		log:      log,
		failOpen: failOpen,
		now:      time.Now,
	}
}

func (l *FixedWindowLimiter) Allow(ctx context.Context, key string, rule Rule) (bool, error) {
	return l.allowN(ctx, key, 1, rule)
}

// allowN consumes n requests at once.
func (l *FixedWindowLimiter) allowN(ctx context.Context, key string, n int, rule Rule) (bool, error) {
	if rule.Limit <= 0 {
		return true, nil
	}
	bucketKey := l.bucketKey(key, rule.Window)

	pipe := l.client.Pipeline()
	incr := pipe.IncrBy(ctx, bucketKey, int64(n))
	// 多留 1 秒, 避免窗口边界上计数器提前消失
	pipe.Expire(ctx, bucketKey, rule.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		if l.failOpen {
			l.log.WarnContext(ctx, "rate limit check failed, allowing request",
				zap.String("key", key),
				zap.Error(err),
			)
			return true, nil
		}
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := incr.Val()
	if count > int64(rule.Limit) {
		l.log.WarnContext(ctx, "rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", rule.Limit),
			zap.Duration("window", rule.Window),
		)
		return false, nil
	}
	return true, nil
}

func (l *FixedWindowLimiter) Remaining(ctx context.Context, key string, rule Rule) (int, error) {
	count, err := l.client.Get(ctx, l.bucketKey(key, rule.Window)).Int64()
	if errors.Is(err, redis.Nil) {
		return rule.Limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit counter: %w", err)
	}
	return max(rule.Limit-int(count), 0), nil
}

func (l *FixedWindowLimiter) Reset(ctx context.Context, key string, rule Rule) error {
	if err := l.client.Del(ctx, l.bucketKey(key, rule.Window)).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit for key %s: %w", key, err)
	}
	return nil
}

func (l *FixedWindowLimiter) bucketKey(key string, window time.Duration) string {
	secs := int64(window / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return fmt.Sprintf("%s%s:%d", keyPrefix, key, l.now().Unix()/secs)
}

// Endpoint names a rule family.
type Endpoint string

const (
	EndpointRegister Endpoint = "register"
	EndpointLogin    Endpoint = "login"
	EndpointAPI      Endpoint = "api"
)

// RuleFor returns the per-minute rule configured for an endpoint.
func RuleFor(endpoint Endpoint, cfg *config.RateLimitConfig) Rule {
	switch endpoint {
	case EndpointRegister:
		return Rule{Limit: cfg.RegisterPerMinute, Window: time.Minute}
	case EndpointLogin:
		return Rule{Limit: cfg.LoginPerMinute, Window: time.Minute}
	case EndpointAPI:
		return Rule{Limit: cfg.APIPerMinute, Window: time.Minute}
	default:
		return Rule{Limit: 100, Window: time.Minute}
	}
}
