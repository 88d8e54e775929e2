package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/noshhq/nosh/pkg/models"
)

// MemoryStore is a process-local job store. Not shared across instances;
// used in development and as the fallback when Redis is not configured.
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	records map[string]*models.JobRecord
	expiry  map[string]time.Time
}

// NewMemoryStore builds an empty in-process store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		records: make(map[string]*models.JobRecord),
		expiry:  make(map[string]time.Time),
	}
}

// IsAvailable always reports true for the in-process store.
func (s *MemoryStore) IsAvailable(context.Context) bool { return true }

// Create stores the initial ACCEPTED record.
func (s *MemoryStore) Create(_ context.Context, requestID, ownerSessionID, ownerUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	if _, exists := s.records[requestID]; exists {
		return fmt.Errorf("jobs: record %s already exists", requestID)
	}
	s.records[requestID] = newRecord(requestID, ownerSessionID, ownerUserID)
	s.expiry[requestID] = time.Now().Add(s.ttl)
	return nil
}

// SetStatus applies a monotonic status transition.
func (s *MemoryStore) SetStatus(_ context.Context, requestID string, status models.JobStatus, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[requestID]
	if !ok {
		return fmt.Errorf("jobs: record %s not found", requestID)
	}
	if !rec.Status.CanTransitionTo(status) {
		return fmt.Errorf("jobs: illegal transition %s -> %s", rec.Status, status)
	}
	rec.Status = status
	if progress > rec.Progress {
		rec.Progress = progress
	}
	return nil
}

// SetResult stores the final result and completes the job.
func (s *MemoryStore) SetResult(_ context.Context, requestID string, result *models.SearchResponse, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[requestID]
	if !ok {
		return fmt.Errorf("jobs: record %s not found", requestID)
	}
	if !rec.Status.CanTransitionTo(models.JobDoneSuccess) {
		return fmt.Errorf("jobs: illegal transition %s -> %s", rec.Status, models.JobDoneSuccess)
	}
	rec.Status = models.JobDoneSuccess
	rec.Progress = 100
	rec.Result = result
	rec.ResultCount = count
	return nil
}

// SetError stores the failure and completes the job.
func (s *MemoryStore) SetError(_ context.Context, requestID, code, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[requestID]
	if !ok {
		return fmt.Errorf("jobs: record %s not found", requestID)
	}
	if !rec.Status.CanTransitionTo(models.JobDoneFailure) {
		return fmt.Errorf("jobs: illegal transition %s -> %s", rec.Status, models.JobDoneFailure)
	}
	rec.Status = models.JobDoneFailure
	rec.Error = &models.JobError{Code: code, Message: message}
	return nil
}

// Get returns a copy of a non-expired record.
func (s *MemoryStore) Get(_ context.Context, requestID string) (*models.JobRecord, bool) {
	s.mu.RLock()
	rec, ok := s.records[requestID]
	exp := s.expiry[requestID]
	s.mu.RUnlock()
	if !ok || time.Now().After(exp) {
		return nil, false
	}
	copied := *rec
	return &copied, true
}

// sweepLocked drops expired records. Called with the write lock held.
func (s *MemoryStore) sweepLocked() {
	now := time.Now()
	for id, exp := range s.expiry {
		if now.After(exp) {
			delete(s.records, id)
			delete(s.expiry, id)
		}
	}
}
