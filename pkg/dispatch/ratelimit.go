package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RateLimiter caps dispatches per workflow per channel. Exceeding the
// limit delays dispatch, it never fails it: the caller parks the run and
// retries after the window.
type RateLimiter interface {
	// Allow consumes one slot for the bucket if available.
	Allow(ctx context.Context, workflowID, channel string) (bool, error)
}

// RateLimitConfig is the per-bucket budget.
type RateLimitConfig struct {
	PerWindow int           // Max dispatches per window, 0 disables limiting
	Window    time.Duration // Window length
}

func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{PerWindow: 30, Window: time.Minute}
}

func bucketKey(workflowID, channel string) string {
	return fmt.Sprintf("fideliza:ratelimit:%s:%s", workflowID, channel)
}

// RedisRateLimiter is a fixed-window counter on shared Redis, so the limit
// holds across engine processes. INCR + EXPIRE on first hit.
type RedisRateLimiter struct {
	client redis.UniversalClient
	config RateLimitConfig
}

func NewRedisRateLimiter(client redis.UniversalClient, config RateLimitConfig) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, config: config}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, workflowID, channel string) (bool, error) {
	if l.config.PerWindow <= 0 {
		return true, nil
	}

	key := bucketKey(workflowID, channel)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire failed: %w", err)
		}
	}

	return count <= int64(l.config.PerWindow), nil
}

// MemoryRateLimiter is the in-process twin for tests and dev runs.
type MemoryRateLimiter struct {
	config RateLimitConfig

	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
}

func NewMemoryRateLimiter(config RateLimitConfig) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		config:  config,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, workflowID, channel string) (bool, error) {
	if l.config.PerWindow <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := bucketKey(workflowID, channel)
	now := l.now()

	w, exists := l.windows[key]
	if !exists || now.Sub(w.start) >= l.config.Window {
		w = &window{start: now}
		l.windows[key] = w
	}

	w.count++

	return w.count <= l.config.PerWindow, nil
}
