package storage

import (
	"context"
	"testing"
	"time"

	"github.com/account-tracker/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *RunStatusStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &RunStatusStore{client: client}
}

func TestRunStatusStore_PublishAndLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)
	summary := &models.RunSummary{
		RunID:      "4f3a2c10-9b1e-4d2f-8a7c-0d6e5b4a3c21",
		Kind:       models.RunReseed,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Minute),
		Processed:  120,
		Blown:      14,
		Purchases:  6,
		Plan50k:    3,
		Active:     95,
		Skipped:    2,
	}

	require.NoError(t, store.Publish(ctx, summary))

	got, err := store.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, summary.RunID, got.RunID)
	assert.Equal(t, models.RunReseed, got.Kind)
	assert.Equal(t, 120, got.Processed)
	assert.True(t, summary.FinishedAt.Equal(got.FinishedAt))
}

func TestRunStatusStore_LatestEmpty(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got, "no summary before the first pass")
}

func TestRunStatusStore_PublishReplacesPrevious(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &models.RunSummary{RunID: "run-1", Kind: models.RunReseed}
	second := &models.RunSummary{RunID: "run-2", Kind: models.RunUpdate, Processed: 7}

	require.NoError(t, store.Publish(ctx, first))
	require.NoError(t, store.Publish(ctx, second))

	got, err := store.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-2", got.RunID)
	assert.Equal(t, models.RunUpdate, got.Kind)
	assert.Equal(t, 7, got.Processed)
}
