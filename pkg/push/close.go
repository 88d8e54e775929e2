package push

import (
	"log/slog"

	"github.com/coder/websocket"
)

// CloseSource tags the cause of a push-socket close. Every close goes
// through CloseWith so the (code, source) pair stays consistent.
type CloseSource string

// Close sources.
const (
	SourceIdleTimeout    CloseSource = "IDLE_TIMEOUT"
	SourceServerShutdown CloseSource = "SERVER_SHUTDOWN"
	SourceClientClose    CloseSource = "CLIENT_CLOSE"
	SourcePolicy         CloseSource = "POLICY"
	SourceError          CloseSource = "ERROR"
)

// StatusFor maps a close source to its reserved close code. 1001 is
// used only for IDLE_TIMEOUT and SERVER_SHUTDOWN.
func StatusFor(src CloseSource) websocket.StatusCode {
	switch src {
	case SourceIdleTimeout, SourceServerShutdown:
		return websocket.StatusGoingAway // 1001
	case SourceClientClose:
		return websocket.StatusNormalClosure // 1000
	case SourcePolicy:
		return websocket.StatusPolicyViolation // 1008
	default:
		return websocket.StatusInternalError // 1011
	}
}

// ValidPair reports whether a (code, source) combination honours the
// close taxonomy.
func ValidPair(code websocket.StatusCode, src CloseSource) bool {
	return code == StatusFor(src)
}

// CloseWith closes a connection with the code reserved for the source
// and a non-empty reason. The single choke point for every server-side
// close.
func CloseWith(conn *websocket.Conn, src CloseSource, reason string) {
	if reason == "" {
		reason = string(src)
	}
	code := StatusFor(src)
	if code == websocket.StatusGoingAway && src != SourceIdleTimeout && src != SourceServerShutdown {
		slog.Error("Close code 1001 used with non-going-away source", "source", src)
	}
	_ = conn.Close(code, reason)
	slog.Debug("Push connection closed", "code", int(code), "source", src, "reason", reason)
}
