package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limiters(t *testing.T) map[string]Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]Limiter{
		"memory": NewMemoryLimiter(),
		"redis":  NewRedisLimiter(client),
	}
}

func TestLimiter_EnforcesBudget(t *testing.T) {
	for name, limiter := range limiters(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				assert.True(t, limiter.Allow(ctx, "search", "1.2.3.4", "sess-a", 3))
			}
			assert.False(t, limiter.Allow(ctx, "search", "1.2.3.4", "sess-a", 3))
		})
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	for name, limiter := range limiters(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.True(t, limiter.Allow(ctx, "search", "1.2.3.4", "sess-a", 1))
			require.False(t, limiter.Allow(ctx, "search", "1.2.3.4", "sess-a", 1))

			// Different session, IP or scope each get their own budget.
			assert.True(t, limiter.Allow(ctx, "search", "1.2.3.4", "sess-b", 1))
			assert.True(t, limiter.Allow(ctx, "search", "5.6.7.8", "sess-a", 1))
			assert.True(t, limiter.Allow(ctx, "photos", "1.2.3.4", "sess-a", 1))
		})
	}
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewRedisLimiter(client)
	mr.Close()

	assert.True(t, limiter.Allow(context.Background(), "search", "1.2.3.4", "sess-a", 1))
}
