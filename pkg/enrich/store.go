package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry statuses.
const (
	StatusFound    = "FOUND"
	StatusNotFound = "NOT_FOUND"
)

// Entry is a cached enrichment outcome for (provider, placeId).
type Entry struct {
	Status string  `json:"status"` // FOUND | NOT_FOUND
	URL    *string `json:"url"`
}

// Cache stores resolved deep links with TTL expiry.
type Cache interface {
	Get(ctx context.Context, provider, placeID string) (*Entry, bool)
	Set(ctx context.Context, provider, placeID string, entry Entry, ttl time.Duration)
}

// Locker grants at-most-one concurrent resolver per (provider, placeId).
// Locks expire on their own so a crashed worker never wedges a key.
type Locker interface {
	TryAcquire(ctx context.Context, provider, placeID string, ttl time.Duration) bool
	Release(ctx context.Context, provider, placeID string)
}

func enrichKey(kind, provider, placeID string) string {
	return fmt.Sprintf("nosh:enrich:%s:%s:%s", kind, provider, placeID)
}

// RedisStore implements Cache and Locker on Redis. The lock uses
// SET NX PX semantics.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a store over an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get reads a cached entry; any failure is a miss.
func (s *RedisStore) Get(ctx context.Context, provider, placeID string) (*Entry, bool) {
	raw, err := s.client.Get(ctx, enrichKey("cache", provider, placeID)).Bytes()
	if err != nil {
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

// Set writes an entry with TTL. Failures are silent: the cache is an
// optimization.
func (s *RedisStore) Set(ctx context.Context, provider, placeID string, entry Entry, ttl time.Duration) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	s.client.Set(ctx, enrichKey("cache", provider, placeID), raw, ttl)
}

// TryAcquire takes the per-key lock if free.
func (s *RedisStore) TryAcquire(ctx context.Context, provider, placeID string, ttl time.Duration) bool {
	ok, err := s.client.SetNX(ctx, enrichKey("lock", provider, placeID), "1", ttl).Result()
	return err == nil && ok
}

// Release frees the per-key lock early; TTL covers the crash path.
func (s *RedisStore) Release(ctx context.Context, provider, placeID string) {
	s.client.Del(ctx, enrichKey("lock", provider, placeID))
}

// MemoryStore implements Cache and Locker in-process for development.
type MemoryStore struct {
	mu    sync.Mutex
	cache map[string]memoryCacheEntry
	locks map[string]time.Time
}

type memoryCacheEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemoryStore builds an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: make(map[string]memoryCacheEntry),
		locks: make(map[string]time.Time),
	}
}

// Get reads a non-expired entry.
func (s *MemoryStore) Get(_ context.Context, provider, placeID string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.cache[enrichKey("cache", provider, placeID)]
	if !ok || time.Now().After(item.expiresAt) {
		return nil, false
	}
	entry := item.entry
	return &entry, true
}

// Set stores an entry with TTL.
func (s *MemoryStore) Set(_ context.Context, provider, placeID string, entry Entry, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[enrichKey("cache", provider, placeID)] = memoryCacheEntry{entry: entry, expiresAt: time.Now().Add(ttl)}
}

// TryAcquire takes the per-key lock if free or expired.
func (s *MemoryStore) TryAcquire(_ context.Context, provider, placeID string, ttl time.Duration) bool {
	key := enrichKey("lock", provider, placeID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, held := s.locks[key]; held && time.Now().Before(exp) {
		return false
	}
	s.locks[key] = time.Now().Add(ttl)
	return true
}

// Release frees the per-key lock.
func (s *MemoryStore) Release(_ context.Context, provider, placeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, enrichKey("lock", provider, placeID))
}
