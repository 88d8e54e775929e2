package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"
)

// tokenHandler handles POST /api/v1/auth/token. Mints a fresh session
// and a Bearer token bound to it.
func (s *Server) tokenHandler(c *echo.Context) error {
	session, err := s.sessions.Create(c.Request().Context(), "")
	if err != nil {
		return errorJSON(c, http.StatusServiceUnavailable, "SESSION_STORE_UNAVAILABLE", "Service Unavailable")
	}

	token, err := s.issuer.Mint(session.ID, session.UserID)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "INTERNAL", "token minting failed")
	}

	return c.JSON(http.StatusOK, &TokenResponse{
		Token:     token,
		SessionID: session.ID,
		TraceID:   uuid.NewString(),
	})
}

// sessionHandler handles POST /api/v1/auth/session. Exchanges a Bearer
// token for the HttpOnly session cookie.
func (s *Server) sessionHandler(c *echo.Context) error {
	raw := bearerToken(c)
	if raw == "" {
		return unauthenticated(c)
	}
	claims, err := s.issuer.Verify(raw)
	if err != nil {
		return unauthenticated(c)
	}

	http.SetCookie(c.Response(), &http.Cookie{
		Name:     sessionCookieName,
		Value:    claims.SessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.cfg.SessionTTL / time.Second),
		Secure:   s.cfg.Production(),
	})
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// bootstrapHandler handles POST /api/v1/auth/bootstrap. Refuses service
// outright when the session store is not ready.
func (s *Server) bootstrapHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	if !s.sessions.IsAvailable(ctx) {
		return errorJSON(c, http.StatusServiceUnavailable, "SESSION_STORE_UNAVAILABLE", "Service Unavailable")
	}

	session, err := s.sessions.Create(ctx, "")
	if err != nil {
		return errorJSON(c, http.StatusServiceUnavailable, "SESSION_STORE_UNAVAILABLE", "Service Unavailable")
	}

	return c.JSON(http.StatusOK, &BootstrapResponse{
		OK:        true,
		SessionID: session.ID,
		TraceID:   uuid.NewString(),
	})
}

// whoamiHandler handles GET /api/v1/auth/whoami.
func (s *Server) whoamiHandler(c *echo.Context) error {
	info := s.authenticate(c)
	if info == nil {
		return c.JSON(http.StatusOK, &WhoamiResponse{Authenticated: false})
	}
	return c.JSON(http.StatusOK, &WhoamiResponse{
		Authenticated: true,
		SessionID:     info.SessionID,
		UserID:        info.UserID,
		AuthSource:    info.Source,
	})
}

// wsTicketHandler handles POST /api/v1/auth/ws-ticket. Bearer only: the
// ticket exists precisely for clients that cannot attach headers to the
// socket upgrade.
func (s *Server) wsTicketHandler(c *echo.Context) error {
	raw := bearerToken(c)
	if raw == "" {
		return unauthenticated(c)
	}
	claims, err := s.issuer.Verify(raw)
	if err != nil {
		return unauthenticated(c)
	}

	ticket, err := s.tickets.Issue(c.Request().Context(), claims.SessionID, claims.UserID)
	if err != nil {
		return errorJSON(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "ticket store unavailable")
	}

	return c.JSON(http.StatusOK, &TicketResponse{
		Ticket:     ticket,
		TTLSeconds: int(s.cfg.TicketTTL / time.Second),
	})
}
