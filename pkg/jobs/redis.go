package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noshhq/nosh/pkg/models"
)

const keyPrefix = "nosh:job:"

// RedisStore persists job records in Redis with TTL expiry, shared
// across instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a store over an existing Redis client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// IsAvailable pings the backing connection with a short budget.
func (s *RedisStore) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}

// Create stores the initial ACCEPTED record.
func (s *RedisStore) Create(ctx context.Context, requestID, ownerSessionID, ownerUserID string) error {
	return s.write(ctx, newRecord(requestID, ownerSessionID, ownerUserID))
}

// SetStatus applies a monotonic status transition.
func (s *RedisStore) SetStatus(ctx context.Context, requestID string, status models.JobStatus, progress int) error {
	return s.update(ctx, requestID, func(rec *models.JobRecord) error {
		if !rec.Status.CanTransitionTo(status) {
			return fmt.Errorf("jobs: illegal transition %s -> %s", rec.Status, status)
		}
		rec.Status = status
		if progress > rec.Progress {
			rec.Progress = progress
		}
		return nil
	})
}

// SetResult stores the final result and completes the job.
func (s *RedisStore) SetResult(ctx context.Context, requestID string, result *models.SearchResponse, count int) error {
	return s.update(ctx, requestID, func(rec *models.JobRecord) error {
		if !rec.Status.CanTransitionTo(models.JobDoneSuccess) {
			return fmt.Errorf("jobs: illegal transition %s -> %s", rec.Status, models.JobDoneSuccess)
		}
		rec.Status = models.JobDoneSuccess
		rec.Progress = 100
		rec.Result = result
		rec.ResultCount = count
		return nil
	})
}

// SetError stores the failure and completes the job.
func (s *RedisStore) SetError(ctx context.Context, requestID, code, message string) error {
	return s.update(ctx, requestID, func(rec *models.JobRecord) error {
		if !rec.Status.CanTransitionTo(models.JobDoneFailure) {
			return fmt.Errorf("jobs: illegal transition %s -> %s", rec.Status, models.JobDoneFailure)
		}
		rec.Status = models.JobDoneFailure
		rec.Error = &models.JobError{Code: code, Message: message}
		return nil
	})
}

// Get returns a record if present and not expired.
func (s *RedisStore) Get(ctx context.Context, requestID string) (*models.JobRecord, bool) {
	raw, err := s.client.Get(ctx, keyPrefix+requestID).Bytes()
	if err != nil {
		return nil, false
	}
	var rec models.JobRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func (s *RedisStore) update(ctx context.Context, requestID string, mutate func(*models.JobRecord) error) error {
	rec, ok := s.Get(ctx, requestID)
	if !ok {
		return fmt.Errorf("jobs: record %s not found", requestID)
	}
	if err := mutate(rec); err != nil {
		return err
	}
	return s.write(ctx, rec)
}

func (s *RedisStore) write(ctx context.Context, rec *models.JobRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("jobs: encoding record: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+rec.RequestID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("jobs: writing record: %w", err)
	}
	return nil
}
