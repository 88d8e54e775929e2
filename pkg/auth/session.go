// Package auth covers session establishment, JWT mint/verify and the
// one-time push-channel tickets.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session is the server-side record behind an opaque session identifier.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionStore persists sessions. Bootstrap refuses service when the
// store is not ready.
type SessionStore interface {
	IsAvailable(ctx context.Context) bool
	Create(ctx context.Context, userID string) (*Session, error)
	Get(ctx context.Context, sessionID string) (*Session, bool)
}

// HashID returns the stable hash under which identifiers appear in
// logs. Raw session identifiers are never logged.
func HashID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:8])
}

// MemorySessionStore is the process-local session backend used in
// development.
type MemorySessionStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]sessionEntry
}

type sessionEntry struct {
	session   Session
	expiresAt time.Time
}

// NewMemorySessionStore builds an empty in-process session store.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{ttl: ttl, sessions: make(map[string]sessionEntry)}
}

// IsAvailable always reports true for the in-process store.
func (s *MemorySessionStore) IsAvailable(context.Context) bool { return true }

// Create mints a new opaque session.
func (s *MemorySessionStore) Create(_ context.Context, userID string) (*Session, error) {
	session := Session{ID: uuid.NewString(), UserID: userID, CreatedAt: time.Now().UTC()}
	s.mu.Lock()
	s.sessions[session.ID] = sessionEntry{session: session, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return &session, nil
}

// Get returns a non-expired session.
func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (*Session, bool) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	session := entry.session
	return &session, true
}

const sessionKeyPrefix = "nosh:session:"

// RedisSessionStore shares sessions across instances.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore builds a session store over an existing client.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

// IsAvailable pings the backing connection with a short budget.
func (s *RedisSessionStore) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}

// Create mints and persists a new opaque session.
func (s *RedisSessionStore) Create(ctx context.Context, userID string) (*Session, error) {
	session := Session{ID: uuid.NewString(), UserID: userID, CreatedAt: time.Now().UTC()}
	raw, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("auth: encoding session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, raw, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("auth: storing session: %w", err)
	}
	return &session, nil
}

// Get returns a session if present and not expired.
func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*Session, bool) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err != nil {
		return nil, false
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, false
	}
	return &session, true
}
