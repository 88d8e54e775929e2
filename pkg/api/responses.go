package api

import (
	"github.com/noshhq/nosh/pkg/enrich"
	"github.com/noshhq/nosh/pkg/models"
)

// TokenResponse is returned by POST /api/v1/auth/token.
type TokenResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
	TraceID   string `json:"traceId"`
}

// BootstrapResponse is returned by POST /api/v1/auth/bootstrap.
type BootstrapResponse struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"sessionId"`
	TraceID   string `json:"traceId"`
}

// WhoamiResponse is returned by GET /api/v1/auth/whoami.
type WhoamiResponse struct {
	Authenticated bool   `json:"authenticated"`
	SessionID     string `json:"sessionId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	AuthSource    string `json:"authSource,omitempty"`
}

// TicketResponse is returned by POST /api/v1/auth/ws-ticket.
type TicketResponse struct {
	Ticket     string `json:"ticket"`
	TTLSeconds int    `json:"ttlSeconds"`
}

// AsyncSearchResponse is returned by POST /api/v1/search?mode=async.
type AsyncSearchResponse struct {
	RequestID string `json:"requestId"`
	ResultURL string `json:"resultUrl"`
}

// PendingResultResponse is returned while an async job is running.
type PendingResultResponse struct {
	Status   models.JobStatus `json:"status"`
	Progress int              `json:"progress"`
}

// FailedResultResponse is returned for a job that ended in failure.
type FailedResultResponse struct {
	Status models.JobStatus `json:"status"`
	Error  *models.JobError `json:"error"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status          string                `json:"status"`
	JobStore        string                `json:"jobStore"`
	SessionStore    string                `json:"sessionStore"`
	PushConnections int                   `json:"pushConnections"`
	EnrichWorkers   []enrich.WorkerHealth `json:"enrichWorkers,omitempty"`
}
