package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

// debugRedisHandler handles GET /api/v1/debug/redis. Hidden in
// production unless ENABLE_DEBUG_REDIS is set.
func (s *Server) debugRedisHandler(c *echo.Context) error {
	if s.cfg.Production() && !s.cfg.EnableDebugRedis {
		return notFound(c)
	}
	if s.redis == nil {
		return c.JSON(http.StatusOK, map[string]any{"configured": false})
	}

	start := time.Now()
	err := s.redis.Ping(c.Request().Context()).Err()
	out := map[string]any{
		"configured": true,
		"available":  err == nil,
		"latency_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		out["error"] = err.Error()
	}
	return c.JSON(http.StatusOK, out)
}
