package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter defines the interface for rate limiting operations
type Limiter interface {
	// Allow checks if a request should be allowed based on rate limits
	// Returns true if allowed, false if rate limit exceeded
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// AllowN checks if N requests should be allowed
	AllowN(ctx context.Context, key string, n int, limit int, window time.Duration) (bool, error)

	// Reset resets the rate limit counter for a key
	Reset(ctx context.Context, key string) error

	// GetRemaining returns the number of remaining requests in the current window
	GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// TokenBucketLimiter implements rate limiting using windowed counters in
// Redis. Atomic INCR keeps it safe for concurrent callers.
type TokenBucketLimiter struct {
	redisClient *redis.Client
	logger      *zap.Logger
	fallback    bool // If true, allow requests when Redis is unavailable (fail-open)
}

// NewTokenBucketLimiter creates a new rate limiter. With fallback enabled,
// requests are allowed whenever Redis is unreachable.
func NewTokenBucketLimiter(redisClient *redis.Client, logger *zap.Logger, fallback bool) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		redisClient: redisClient,
		logger:      logger,
		fallback:    fallback,
	}
}

// Allow checks if a single request should be allowed based on rate limits.
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return l.AllowN(ctx, key, 1, limit, window)
}

// AllowN checks if N requests should be allowed based on rate limits.
// This is useful for operations that consume multiple tokens.
func (l *TokenBucketLimiter) AllowN(ctx context.Context, key string, n int, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	bucketKey := l.getBucketKey(key, now, window)

	pipe := l.redisClient.Pipeline()
	incrCmd := pipe.IncrBy(ctx, bucketKey, int64(n))
	pipe.Expire(ctx, bucketKey, window+time.Second)

	_, err := pipe.Exec(ctx)
	if err != nil {
		l.logger.Error("rate limit check failed",
			zap.String("key", bucketKey),
			zap.Error(err),
		)

		if l.fallback {
			l.logger.Warn("rate limit check failed, allowing request (fail-open)",
				zap.String("key", key),
			)
			return true, nil
		}

		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := incrCmd.Val()
	allowed := count <= int64(limit)

	if !allowed {
		l.logger.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", limit),
			zap.Duration("window", window),
		)
	}

	return allowed, nil
}

// Reset resets the rate limit counter for a key. This can be used to manually
// clear rate limits for a user or IP.
func (l *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	now := time.Now()
	windows := []time.Duration{time.Minute, time.Hour, 24 * time.Hour}

	var keys []string
	for _, window := range windows {
		keys = append(keys, l.getBucketKey(key, now, window))
		keys = append(keys, l.getBucketKey(key, now.Add(-window), window))
	}

	err := l.redisClient.Del(ctx, keys...).Err()
	if err != nil {
		return fmt.Errorf("failed to reset rate limit for key %s: %w", key, err)
	}

	l.logger.Info("rate limit reset",
		zap.String("key", key),
	)

	return nil
}

// GetRemaining returns the number of remaining requests in the current window.
func (l *TokenBucketLimiter) GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	now := time.Now()
	bucketKey := l.getBucketKey(key, now, window)

	count, err := l.redisClient.Get(ctx, bucketKey).Int64()
	if err != nil {
		if err == redis.Nil {
			// Key doesn't exist, all tokens available
			return limit, nil
		}
		return 0, fmt.Errorf("failed to get remaining tokens: %w", err)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

// getBucketKey generates a time-based bucket key for rate limiting.
func (l *TokenBucketLimiter) getBucketKey(key string, now time.Time, window time.Duration) string {
	var bucketTime int64

	switch {
	case window <= time.Minute:
		bucketTime = now.Unix() / int64(window.Seconds())
	case window <= time.Hour:
		bucketTime = now.Unix() / 60 / int64(window.Minutes())
	default:
		bucketTime = now.Unix() / 3600 / int64(window.Hours())
	}

	return fmt.Sprintf("ratelimit:%s:%d", key, bucketTime)
}
