package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
)

// healthHandler handles GET /healthz. Only the service's own stores are
// checked; upstream providers are excluded so their outages cannot make
// an orchestrator restart this process.
func (s *Server) healthHandler(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := &HealthResponse{
		Status:       healthStatusHealthy,
		JobStore:     healthStatusHealthy,
		SessionStore: healthStatusHealthy,
	}

	if s.store == nil || !s.store.IsAvailable(ctx) {
		resp.JobStore = healthStatusDegraded
		resp.Status = healthStatusDegraded
	}
	if !s.sessions.IsAvailable(ctx) {
		resp.SessionStore = healthStatusDegraded
		resp.Status = healthStatusDegraded
	}
	if s.connMgr != nil {
		resp.PushConnections = s.connMgr.ActiveConnections()
	}
	if s.enricher != nil {
		resp.EnrichWorkers = s.enricher.Health()
	}

	httpStatus := http.StatusOK
	if resp.Status != healthStatusHealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	return c.JSON(httpStatus, resp)
}
