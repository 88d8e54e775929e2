package api

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"
)

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// corsMiddleware applies the unified origin allowlist with credentials
// enabled. Preflight requests are answered directly.
func corsMiddleware(origins []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			origin := c.Request().Header.Get("Origin")
			if origin != "" && originAllowed(origins, origin) {
				h := c.Response().Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Vary", "Origin")
				if c.Request().Method == http.MethodOptions {
					h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
					h.Set("Access-Control-Max-Age", "600")
					return c.NoContent(http.StatusNoContent)
				}
			}
			return next(c)
		}
	}
}

// originAllowed matches an Origin header against the allowlist. Entries
// are exact origins or "*.domain" wildcards covering subdomains.
func originAllowed(allowlist []string, origin string) bool {
	host := origin
	if i := strings.Index(origin, "://"); i >= 0 {
		host = origin[i+3:]
	}
	host, _, _ = strings.Cut(host, ":")

	for _, allowed := range allowlist {
		switch {
		case allowed == "*":
			return true
		case strings.HasPrefix(allowed, "*."):
			if strings.HasSuffix(host, strings.TrimPrefix(allowed, "*")) {
				return true
			}
		case origin == allowed:
			return true
		}
	}
	return false
}
