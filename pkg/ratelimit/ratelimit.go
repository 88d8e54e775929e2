// Package ratelimit implements a fixed-window request limiter keyed by
// IP and session. The limiter fails open: a broken backend never blocks
// traffic.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const window = time.Minute

// Limiter answers whether one more request fits the per-minute budget.
type Limiter interface {
	// Allow consumes one unit from the (scope, ip, sessionID) budget.
	Allow(ctx context.Context, scope, ip, sessionID string, limit int) bool
}

func windowKey(scope, ip, sessionID string, now time.Time) string {
	return fmt.Sprintf("nosh:rl:%s:%s:%s:%d", scope, ip, sessionID, now.Unix()/int64(window.Seconds()))
}

// RedisLimiter counts requests in Redis so limits hold across instances.
type RedisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter builds a limiter over an existing Redis client.
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Allow increments the current window counter. On any backend failure
// the request is allowed.
func (l *RedisLimiter) Allow(ctx context.Context, scope, ip, sessionID string, limit int) bool {
	key := windowKey(scope, ip, sessionID, time.Now())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("Rate limiter backend failure, failing open", "scope", scope, "error", err)
		return true
	}
	return incr.Val() <= int64(limit)
}

// MemoryLimiter is the process-local fallback used without Redis.
type MemoryLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	epoch  int64
}

// NewMemoryLimiter builds an empty in-process limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{counts: make(map[string]int)}
}

// Allow increments the current window counter, resetting counters when
// the window rolls over.
func (l *MemoryLimiter) Allow(_ context.Context, scope, ip, sessionID string, limit int) bool {
	now := time.Now()
	epoch := now.Unix() / int64(window.Seconds())

	l.mu.Lock()
	defer l.mu.Unlock()
	if epoch != l.epoch {
		l.counts = make(map[string]int)
		l.epoch = epoch
	}
	key := windowKey(scope, ip, sessionID, now)
	l.counts[key]++
	return l.counts[key] <= limit
}
