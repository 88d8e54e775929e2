package places

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noshhq/nosh/pkg/models"
)

// cacheReadBudget bounds a cache lookup so a slow backend can never
// delay the provider call it races against.
const cacheReadBudget = 150 * time.Millisecond

// Cache stores normalized search results keyed by (method, body).
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.Place, bool)
	Set(ctx context.Context, key string, places []models.Place, ttl time.Duration)
}

// MemoryCache is a process-local TTL cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	places    []models.Place
	expiresAt time.Time
}

// NewMemoryCache builds an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// Get returns a non-expired entry. Expired entries are dropped lazily.
func (c *MemoryCache) Get(_ context.Context, key string) ([]models.Place, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.places, true
}

// Set stores an entry with its TTL.
func (c *MemoryCache) Set(_ context.Context, key string, places []models.Place, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = memoryEntry{places: places, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// RedisCache shares search results across instances.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache builds a cache over an existing Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get reads and decodes an entry under the read budget. Any backend or
// decode failure is a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]models.Place, bool) {
	ctx, cancel := context.WithTimeout(ctx, cacheReadBudget)
	defer cancel()

	raw, err := c.client.Get(ctx, "places:cache:"+key).Bytes()
	if err != nil {
		return nil, false
	}
	var places []models.Place
	if err := json.Unmarshal(raw, &places); err != nil {
		return nil, false
	}
	return places, true
}

// Set writes an entry with its TTL. Failures are silent: the cache is
// an optimization, never a dependency.
func (c *RedisCache) Set(ctx context.Context, key string, places []models.Place, ttl time.Duration) {
	raw, err := json.Marshal(places)
	if err != nil {
		return
	}
	c.client.Set(ctx, "places:cache:"+key, raw, ttl)
}
