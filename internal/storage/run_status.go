package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/account-tracker/internal/models"
	"github.com/redis/go-redis/v9"
)

const lastRunKey = "account-tracker:last_run"

// RunStatusStore keeps the summary of the most recent worker pass in Redis so
// the read API can report it without touching Postgres.
type RunStatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRunStatusStore creates a run status store. A zero ttl keeps the summary
// until the next pass overwrites it.
func NewRunStatusStore(cache *RedisCache, ttl time.Duration) *RunStatusStore {
	return &RunStatusStore{client: cache.Client(), ttl: ttl}
}

// Publish stores the run summary, replacing the previous one.
func (s *RunStatusStore) Publish(ctx context.Context, summary *models.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	if err := s.client.Set(ctx, lastRunKey, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store run summary: %w", err)
	}
	return nil
}

// Latest returns the most recent run summary, or nil when no pass has
// completed yet.
func (s *RunStatusStore) Latest(ctx context.Context) (*models.RunSummary, error) {
	data, err := s.client.Get(ctx, lastRunKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run summary: %w", err)
	}

	var summary models.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run summary: %w", err)
	}
	return &summary, nil
}
