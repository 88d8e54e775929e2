package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/noshhq/nosh/pkg/auth"
	"github.com/noshhq/nosh/pkg/models"
	"github.com/noshhq/nosh/pkg/orchestrator"
)

// searchHandler handles POST /api/v1/search?mode=sync|async.
func (s *Server) searchHandler(c *echo.Context) error {
	info := s.authenticate(c)
	if info == nil {
		return unauthenticated(c)
	}

	if !s.limiter.Allow(c.Request().Context(), "search", c.RealIP(), info.SessionID, s.cfg.RateLimit.SearchPerMinute) {
		return errorJSON(c, http.StatusTooManyRequests, "RATE_LIMITED", "search rate limit exceeded")
	}

	var body SearchRequest
	if err := c.Bind(&body); err != nil {
		return invalidJSON(c)
	}
	if strings.TrimSpace(body.Query) == "" {
		return errorJSON(c, http.StatusBadRequest, "INPUT_INVALID", "query is required")
	}

	requestID := uuid.NewString()
	req := orchestrator.Request{
		RequestID:    requestID,
		Query:        body.Query,
		UserLocation: body.UserLocation,
		CityText:     body.CityText,
		Locale:       body.Locale,
		SessionID:    info.SessionID,
		UserID:       info.UserID,
	}

	if s.store != nil {
		if err := s.store.Create(c.Request().Context(), requestID, info.SessionID, info.UserID); err != nil {
			slog.Warn("Failed to create job record",
				"request_id", requestID, "session", auth.HashID(info.SessionID), "error", err)
		}
	}

	if c.QueryParam("mode") == "async" {
		// The run outlives this request; it gets its own context.
		go s.runner.Run(context.WithoutCancel(c.Request().Context()), req)
		return c.JSON(http.StatusAccepted, &AsyncSearchResponse{
			RequestID: requestID,
			ResultURL: "/api/v1/search/" + requestID + "/result",
		})
	}

	resp := s.runner.Run(c.Request().Context(), req)
	return c.JSON(http.StatusOK, resp)
}

// resultHandler handles GET /api/v1/search/:requestId/result. Ownership
// mismatches and ownerless legacy records are indistinguishable from
// missing jobs.
func (s *Server) resultHandler(c *echo.Context) error {
	info := s.authenticate(c)
	if info == nil {
		return unauthenticated(c)
	}
	if s.store == nil {
		return notFound(c)
	}

	rec, ok := s.store.Get(c.Request().Context(), c.Param("requestId"))
	if !ok {
		return notFound(c)
	}
	if rec.OwnerSessionID == "" || rec.OwnerSessionID != info.SessionID {
		return notFound(c)
	}

	switch rec.Status {
	case models.JobDoneSuccess:
		return c.JSON(http.StatusOK, rec.Result)
	case models.JobDoneFailure:
		return c.JSON(http.StatusOK, &FailedResultResponse{Status: rec.Status, Error: rec.Error})
	default:
		return c.JSON(http.StatusAccepted, &PendingResultResponse{Status: rec.Status, Progress: rec.Progress})
	}
}
