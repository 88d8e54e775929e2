package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/noshhq/nosh/pkg/auth"
	"github.com/noshhq/nosh/pkg/push"
)

// wsHandler upgrades GET /ws?ticket=<opaque> to the push socket. The
// ticket handshake is one-time: consumption happens before any events
// flow, and a consumed or unknown ticket closes with (1008, POLICY).
func (s *Server) wsHandler(c *echo.Context) error {
	if s.connMgr == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "push channel not available")
	}

	ticket := c.QueryParam("ticket")
	payload, ticketErr := s.tickets.Consume(c.Request().Context(), ticket)

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: wsOriginPatterns(s.cfg.FrontendOrigins),
	})
	if err != nil {
		return err
	}

	if ticketErr != nil {
		slog.Info("Push-socket handshake refused", "reason", "invalid ticket")
		push.CloseWith(conn, push.SourcePolicy, "invalid or consumed ticket")
		return nil
	}

	slog.Info("Push-socket connected", "session", auth.HashID(payload.SessionID))
	s.connMgr.HandleConnection(c.Request().Context(), conn, payload.SessionID)
	return nil
}

// wsOriginPatterns converts the CORS allowlist into the host patterns
// the websocket library matches against.
func wsOriginPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		host := strings.TrimPrefix(origin, "https://")
		host = strings.TrimPrefix(host, "http://")
		patterns = append(patterns, host)
	}
	return patterns
}
