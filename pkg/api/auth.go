package api

import (
	"strings"

	echo "github.com/labstack/echo/v5"
)

const sessionCookieName = "session"

// authInfo is the resolved identity of a request.
type authInfo struct {
	SessionID string
	UserID    string
	Source    string // "cookie" | "bearer"
}

// authenticate resolves the caller's identity. The session cookie takes
// precedence over a Bearer token. Returns nil when neither yields a
// live session.
func (s *Server) authenticate(c *echo.Context) *authInfo {
	if cookie, err := c.Request().Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if session, ok := s.sessions.Get(c.Request().Context(), cookie.Value); ok {
			return &authInfo{SessionID: session.ID, UserID: session.UserID, Source: "cookie"}
		}
	}

	raw := bearerToken(c)
	if raw == "" {
		return nil
	}
	claims, err := s.issuer.Verify(raw)
	if err != nil {
		return nil
	}
	return &authInfo{SessionID: claims.SessionID, UserID: claims.UserID, Source: "bearer"}
}

// bearerToken extracts the Bearer credential from the Authorization
// header, empty when absent or malformed.
func bearerToken(c *echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
