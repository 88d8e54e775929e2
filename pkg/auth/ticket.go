package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTicketInvalid is returned when a ticket is missing, expired or
// already consumed. The push handshake refuses the connection with
// (1008, POLICY).
var ErrTicketInvalid = errors.New("auth: ticket invalid or already consumed")

// TicketPayload is stored under a ticket until its single consumption.
type TicketPayload struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TicketService mints one-time short-TTL tickets exchangeable for a
// push-channel connection.
type TicketService interface {
	Issue(ctx context.Context, sessionID, userID string) (string, error)
	// Consume removes the ticket atomically on first use.
	Consume(ctx context.Context, ticket string) (*TicketPayload, error)
}

// newTicketID mints an opaque URL-safe ticket string.
func newTicketID() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: minting ticket: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

const ticketKeyPrefix = "nosh:ws-ticket:"

// RedisTicketService enforces one-time consumption via GETDEL.
type RedisTicketService struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTicketService builds a ticket service over an existing client.
// TTL is capped at 60 seconds.
func NewRedisTicketService(client *redis.Client, ttl time.Duration) *RedisTicketService {
	if ttl > 60*time.Second {
		ttl = 60 * time.Second
	}
	return &RedisTicketService{client: client, ttl: ttl}
}

// Issue stores a payload under a fresh one-time ticket.
func (s *RedisTicketService) Issue(ctx context.Context, sessionID, userID string) (string, error) {
	ticket, err := newTicketID()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(TicketPayload{SessionID: sessionID, UserID: userID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("auth: encoding ticket: %w", err)
	}
	if err := s.client.Set(ctx, ticketKeyPrefix+ticket, raw, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: storing ticket: %w", err)
	}
	return ticket, nil
}

// Consume performs the atomic get+delete. A second consumption of the
// same ticket fails with ErrTicketInvalid.
func (s *RedisTicketService) Consume(ctx context.Context, ticket string) (*TicketPayload, error) {
	raw, err := s.client.GetDel(ctx, ticketKeyPrefix+ticket).Bytes()
	if err != nil {
		return nil, ErrTicketInvalid
	}
	var payload TicketPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrTicketInvalid
	}
	return &payload, nil
}

// MemoryTicketService is the process-local ticket backend used in
// development.
type MemoryTicketService struct {
	mu      sync.Mutex
	ttl     time.Duration
	tickets map[string]memoryTicket
}

type memoryTicket struct {
	payload   TicketPayload
	expiresAt time.Time
}

// NewMemoryTicketService builds an empty in-process ticket service.
// TTL is capped at 60 seconds.
func NewMemoryTicketService(ttl time.Duration) *MemoryTicketService {
	if ttl > 60*time.Second {
		ttl = 60 * time.Second
	}
	return &MemoryTicketService{ttl: ttl, tickets: make(map[string]memoryTicket)}
}

// Issue stores a payload under a fresh one-time ticket.
func (s *MemoryTicketService) Issue(_ context.Context, sessionID, userID string) (string, error) {
	ticket, err := newTicketID()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.tickets[ticket] = memoryTicket{
		payload:   TicketPayload{SessionID: sessionID, UserID: userID, CreatedAt: time.Now().UTC()},
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()
	return ticket, nil
}

// Consume removes the ticket under the lock, making first use the only
// use.
func (s *MemoryTicketService) Consume(_ context.Context, ticket string) (*TicketPayload, error) {
	s.mu.Lock()
	entry, ok := s.tickets[ticket]
	if ok {
		delete(s.tickets, ticket)
	}
	s.mu.Unlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrTicketInvalid
	}
	payload := entry.payload
	return &payload, nil
}
