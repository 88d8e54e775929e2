// Package push fans pipeline events out to push-socket subscribers.
// Subscriptions are keyed by (channel, requestId, sessionId); every
// close carries a tagged source with its reserved close code.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// idleSweepInterval is how often connections are checked against the
// idle timeout.
const idleSweepInterval = 30 * time.Second

// subKey identifies one subscription.
type subKey struct {
	Channel   string
	RequestID string
	SessionID string
}

// ClientMessage is a control message from a push-socket client.
type ClientMessage struct {
	Action    string `json:"action"` // subscribe | unsubscribe | ping
	Channel   string `json:"channel"`
	RequestID string `json:"requestId"`
}

// Connection is a single push-socket client.
//
// subscriptions is accessed without a lock: all reads and writes happen
// on the goroutine that owns the connection (HandleConnection's read
// loop and its deferred cleanup).
type Connection struct {
	ID            string
	SessionID     string
	conn          *websocket.Conn
	subscriptions map[subKey]bool
	ctx           context.Context
	cancel        context.CancelFunc
	lastActive    atomic.Int64 // unix nanos
}

func (c *Connection) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

// ConnectionManager tracks push-socket connections and their channel
// subscriptions. One instance per process.
type ConnectionManager struct {
	// Active connections: connection id → *Connection.
	connections map[string]*Connection
	mu          sync.RWMutex

	// Subscriptions: key → set of connection ids.
	subs   map[subKey]map[string]bool
	subsMu sync.RWMutex

	writeTimeout time.Duration
	idleTimeout  time.Duration

	sweepStop chan struct{}
	sweepOnce sync.Once
	stopOnce  sync.Once
}

// NewConnectionManager builds a manager with the given write and idle
// budgets and starts the idle sweeper.
func NewConnectionManager(writeTimeout, idleTimeout time.Duration) *ConnectionManager {
	m := &ConnectionManager{
		connections:  make(map[string]*Connection),
		subs:         make(map[subKey]map[string]bool),
		writeTimeout: writeTimeout,
		idleTimeout:  idleTimeout,
		sweepStop:    make(chan struct{}),
	}
	go m.sweepIdle()
	return m
}

// HandleConnection owns the lifecycle of one push-socket connection.
// Blocks until the connection closes. The caller has already validated
// the one-time ticket and resolved the session.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn, sessionID string) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &Connection{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		conn:          conn,
		subscriptions: make(map[subKey]bool),
		ctx:           ctx,
		cancel:        cancel,
	}
	c.touch()

	m.register(c)
	defer m.cleanupConnection(c)

	m.sendJSON(c, map[string]string{
		"type":         "connection.established",
		"connectionId": c.ID,
	})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		c.touch()

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid push-socket message", "connection_id", c.ID, "error", err)
			continue
		}
		m.handleClientMessage(c, &msg)
	}
}

func (m *ConnectionManager) handleClientMessage(c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.Channel == "" || msg.RequestID == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "channel and requestId are required"})
			return
		}
		m.subscribe(c, msg.Channel, msg.RequestID)
		m.sendJSON(c, map[string]string{
			"type":      "subscription.confirmed",
			"channel":   msg.Channel,
			"requestId": msg.RequestID,
		})
	case "unsubscribe":
		m.unsubscribe(c, msg.Channel, msg.RequestID)
	case "ping":
		m.sendJSON(c, map[string]string{"type": "pong"})
	}
}

func (m *ConnectionManager) subscribe(c *Connection, channel, requestID string) {
	key := subKey{Channel: channel, RequestID: requestID, SessionID: c.SessionID}

	m.subsMu.Lock()
	if _, exists := m.subs[key]; !exists {
		m.subs[key] = make(map[string]bool)
	}
	m.subs[key][c.ID] = true
	m.subsMu.Unlock()

	c.subscriptions[key] = true
}

// unsubscribe is idempotent: repeated calls for an already-removed
// subscription are silent no-ops.
func (m *ConnectionManager) unsubscribe(c *Connection, channel, requestID string) {
	key := subKey{Channel: channel, RequestID: requestID, SessionID: c.SessionID}

	m.subsMu.Lock()
	if ids, exists := m.subs[key]; exists {
		delete(ids, c.ID)
		if len(ids) == 0 {
			delete(m.subs, key)
		}
	}
	m.subsMu.Unlock()

	delete(c.subscriptions, key)
}

// Publish fans an event out to every subscriber of (channel, requestID)
// regardless of session. Publish failures are logged, never fatal.
func (m *ConnectionManager) Publish(channel, requestID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("Failed to encode push event", "channel", channel, "error", err)
		return
	}

	// Snapshot subscriber ids, then connection pointers, before sending.
	// Sends can take up to writeTimeout each and must not stall
	// register/unregister.
	m.subsMu.RLock()
	var ids []string
	for key, connIDs := range m.subs {
		if key.Channel != channel || key.RequestID != requestID {
			continue
		}
		for id := range connIDs {
			ids = append(ids, id)
		}
	}
	m.subsMu.RUnlock()

	if len(ids) == 0 {
		return
	}

	m.mu.RLock()
	conns := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if conn, ok := m.connections[id]; ok {
			conns = append(conns, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		if err := m.sendRaw(conn, data); err != nil {
			slog.Warn("Failed to send push event",
				"connection_id", conn.ID, "channel", channel, "error", err)
		}
	}
}

// ActiveConnections returns the number of live push-socket connections.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// subscriberCount is used by tests to poll instead of sleeping.
func (m *ConnectionManager) subscriberCount(channel, requestID, sessionID string) int {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	return len(m.subs[subKey{Channel: channel, RequestID: requestID, SessionID: sessionID}])
}

// Shutdown closes every connection with (1001, SERVER_SHUTDOWN) and
// stops the idle sweeper.
func (m *ConnectionManager) Shutdown() {
	m.stopOnce.Do(func() { close(m.sweepStop) })

	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		CloseWith(c.conn, SourceServerShutdown, "server shutting down")
		c.cancel()
	}
}

func (m *ConnectionManager) register(c *Connection) {
	m.mu.Lock()
	m.connections[c.ID] = c
	m.mu.Unlock()
}

// cleanupConnection removes the connection and all its subscriptions.
// Idempotent: a second cleanup of the same connection is a no-op.
func (m *ConnectionManager) cleanupConnection(c *Connection) {
	for key := range c.subscriptions {
		m.unsubscribe(c, key.Channel, key.RequestID)
	}

	m.mu.Lock()
	_, present := m.connections[c.ID]
	delete(m.connections, c.ID)
	m.mu.Unlock()
	if !present {
		return
	}

	c.cancel()
	CloseWith(c.conn, SourceClientClose, "connection closed")
}

// sweepIdle closes connections inactive beyond the idle timeout with
// (1001, IDLE_TIMEOUT).
func (m *ConnectionManager) sweepIdle() {
	ticker := time.NewTicker(idleSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.sweepStop:
			return
		case <-ticker.C:
		}

		cutoff := time.Now().Add(-m.idleTimeout).UnixNano()
		m.mu.RLock()
		var idle []*Connection
		for _, c := range m.connections {
			if c.lastActive.Load() < cutoff {
				idle = append(idle, c)
			}
		}
		m.mu.RUnlock()

		for _, c := range idle {
			slog.Info("Closing idle push connection", "connection_id", c.ID)
			CloseWith(c.conn, SourceIdleTimeout, "idle timeout")
			c.cancel()
		}
	}
}

func (m *ConnectionManager) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to encode push message", "connection_id", c.ID, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		slog.Warn("Failed to send push message", "connection_id", c.ID, "error", err)
	}
}

func (m *ConnectionManager) sendRaw(c *Connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	err := c.conn.Write(writeCtx, websocket.MessageText, data)
	if err == nil {
		c.touch()
	}
	return err
}
