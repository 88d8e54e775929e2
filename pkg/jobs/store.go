// Package jobs stores owner-bound records of async search requests.
// Two backends implement the Store contract: a process-local map and a
// Redis-backed store. Every call is non-fatal to the caller; the
// pipeline continues on store failure and relies on the push channel.
package jobs

import (
	"context"
	"time"

	"github.com/noshhq/nosh/pkg/models"
)

// Store is the job record contract. Status transitions are monotonic
// (ACCEPTED → RUNNING → DONE_*); terminal states are immutable; records
// expire after the configured TTL.
type Store interface {
	// IsAvailable reports whether the backing connection is ready.
	IsAvailable(ctx context.Context) bool
	Create(ctx context.Context, requestID, ownerSessionID, ownerUserID string) error
	SetStatus(ctx context.Context, requestID string, status models.JobStatus, progress int) error
	SetResult(ctx context.Context, requestID string, result *models.SearchResponse, count int) error
	SetError(ctx context.Context, requestID, code, message string) error
	Get(ctx context.Context, requestID string) (*models.JobRecord, bool)
}

// newRecord builds the initial ACCEPTED record.
func newRecord(requestID, ownerSessionID, ownerUserID string) *models.JobRecord {
	return &models.JobRecord{
		RequestID:      requestID,
		Status:         models.JobAccepted,
		OwnerSessionID: ownerSessionID,
		OwnerUserID:    ownerUserID,
		CreatedAt:      time.Now().UTC(),
	}
}
