package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noshhq/nosh/pkg/models"
)

// stores builds both backends so the contract tests run against each.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(time.Hour),
		"redis":  NewRedisStore(client, time.Hour),
	}
}

func TestStore_Lifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.True(t, store.IsAvailable(ctx))
			require.NoError(t, store.Create(ctx, "req-1", "sess-a", ""))

			rec, ok := store.Get(ctx, "req-1")
			require.True(t, ok)
			assert.Equal(t, models.JobAccepted, rec.Status)
			assert.Equal(t, "sess-a", rec.OwnerSessionID)

			require.NoError(t, store.SetStatus(ctx, "req-1", models.JobRunning, 10))
			require.NoError(t, store.SetResult(ctx, "req-1", &models.SearchResponse{RequestID: "req-1"}, 3))

			rec, ok = store.Get(ctx, "req-1")
			require.True(t, ok)
			assert.Equal(t, models.JobDoneSuccess, rec.Status)
			assert.Equal(t, 100, rec.Progress)
			assert.Equal(t, 3, rec.ResultCount)
			require.NotNil(t, rec.Result)
		})
	}
}

func TestStore_MonotonicTransitions(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Create(ctx, "req-2", "sess-a", ""))
			require.NoError(t, store.SetError(ctx, "req-2", "TIMEOUT", "provider timed out"))

			// Terminal states are immutable.
			assert.Error(t, store.SetStatus(ctx, "req-2", models.JobRunning, 0))
			assert.Error(t, store.SetResult(ctx, "req-2", nil, 0))

			rec, ok := store.Get(ctx, "req-2")
			require.True(t, ok)
			assert.Equal(t, models.JobDoneFailure, rec.Status)
			require.NotNil(t, rec.Error)
			assert.Equal(t, "TIMEOUT", rec.Error.Code)
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok := store.Get(context.Background(), "no-such-job")
			assert.False(t, ok)
		})
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "req-3", "sess-a", ""))

	time.Sleep(40 * time.Millisecond)
	_, ok := store.Get(ctx, "req-3")
	assert.False(t, ok)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, time.Minute)

	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "req-4", "sess-a", ""))

	mr.FastForward(2 * time.Minute)
	_, ok := store.Get(ctx, "req-4")
	assert.False(t, ok)
}

func TestRedisStore_UnavailableAfterClose(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, time.Minute)

	require.True(t, store.IsAvailable(context.Background()))
	mr.Close()
	assert.False(t, store.IsAvailable(context.Background()))
}
