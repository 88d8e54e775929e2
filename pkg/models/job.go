package models

import "time"

// JobStatus is the lifecycle state of an async search job.
type JobStatus string

// Job status constants. Transitions are monotonic:
// ACCEPTED → RUNNING → DONE_SUCCESS | DONE_FAILURE.
const (
	JobAccepted    JobStatus = "ACCEPTED"
	JobRunning     JobStatus = "RUNNING"
	JobDoneSuccess JobStatus = "DONE_SUCCESS"
	JobDoneFailure JobStatus = "DONE_FAILURE"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobDoneSuccess || s == JobDoneFailure
}

// rank orders statuses for the monotonicity check.
func (s JobStatus) rank() int {
	switch s {
	case JobAccepted:
		return 0
	case JobRunning:
		return 1
	case JobDoneSuccess, JobDoneFailure:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next preserves the
// monotonic ordering. Terminal states are immutable.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// JobError is the structured error stored on a failed job.
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JobRecord is the owner-bound record of an async search request.
// OwnerSessionID is never echoed to clients and is hashed before logging.
type JobRecord struct {
	RequestID      string          `json:"requestId"`
	Status         JobStatus       `json:"status"`
	Progress       int             `json:"progress"` // 0..100
	OwnerSessionID string          `json:"ownerSessionId"`
	OwnerUserID    string          `json:"ownerUserId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	Result         *SearchResponse `json:"result,omitempty"`
	ResultCount    int             `json:"resultCount"`
	Error          *JobError       `json:"error,omitempty"`
}
