// Package worker runs the roster passes: loading accounts, enriching them
// with live status, classifying, and persisting bucket membership.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/account-tracker/internal/classifier"
	"github.com/account-tracker/internal/logging"
	"github.com/account-tracker/internal/models"
	"github.com/account-tracker/internal/status"
	"github.com/google/uuid"
)

// RosterSource yields the working account set for one pass.
type RosterSource interface {
	LoadAll(ctx context.Context) ([]models.Account, error)
}

// StatusSource fetches live status for one account.
type StatusSource interface {
	Fetch(ctx context.Context, accountID string) (*status.AccountStatus, error)
}

// BucketStore persists classification results with exclusive membership.
type BucketStore interface {
	Upsert(ctx context.Context, bucket models.Bucket, rec *models.BucketRecord) error
	RetractFromOthers(ctx context.Context, accountID string, kept models.Bucket) error
}

// BaselineStore reads and writes the weekly equity baselines.
type BaselineStore interface {
	LoadAll(ctx context.Context) (map[string]float64, error)
	Upsert(ctx context.Context, rec *models.BaselineRecord) error
}

// RunPublisher records the summary of a completed pass.
type RunPublisher interface {
	Publish(ctx context.Context, summary *models.RunSummary) error
}

// Engine executes one roster pass at a time. Accounts are processed strictly
// sequentially; the status client's limiter provides the inter-account pacing.
type Engine struct {
	roster    RosterSource
	statuses  StatusSource
	buckets   BucketStore
	baselines BaselineStore
	publisher RunPublisher
}

// EngineConfig holds the collaborators for an Engine.
type EngineConfig struct {
	Roster    RosterSource
	Statuses  StatusSource
	Buckets   BucketStore
	Baselines BaselineStore
	Publisher RunPublisher // optional
}

// NewEngine creates a pass engine.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	if cfg.Roster == nil {
		return nil, fmt.Errorf("roster source cannot be nil")
	}
	if cfg.Statuses == nil {
		return nil, fmt.Errorf("status source cannot be nil")
	}
	if cfg.Buckets == nil {
		return nil, fmt.Errorf("bucket store cannot be nil")
	}
	if cfg.Baselines == nil {
		return nil, fmt.Errorf("baseline store cannot be nil")
	}

	return &Engine{
		roster:    cfg.Roster,
		statuses:  cfg.Statuses,
		buckets:   cfg.Buckets,
		baselines: cfg.Baselines,
		publisher: cfg.Publisher,
	}, nil
}

// RunPass processes the full roster once. No single account failure aborts
// the pass; failed accounts keep their prior classification one cycle longer.
// The returned summary is also published when a publisher is configured.
func (e *Engine) RunPass(ctx context.Context, kind models.RunKind, now time.Time) (*models.RunSummary, error) {
	runID := uuid.NewString()
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"runId": runID,
		"kind":  kind,
	})
	ctx = logging.WithLogger(ctx, logger)

	summary := &models.RunSummary{
		RunID:     runID,
		Kind:      kind,
		StartedAt: now,
	}

	accounts, err := e.roster.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}

	// Baselines are loaded once so every account in the pass sees the same
	// snapshot. Reseed passes do not read baselines at all.
	var baselines map[string]float64
	if kind == models.RunUpdate {
		baselines, err = e.baselines.LoadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load baselines: %w", err)
		}
	}

	logger.WithField("accounts", len(accounts)).Info("starting roster pass")

	for _, acct := range accounts {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		e.processAccount(ctx, kind, acct, baselines, now, summary)
		summary.Processed++
	}

	summary.FinishedAt = time.Now().UTC()
	logger.WithFields(map[string]interface{}{
		"processed": summary.Processed,
		"blown":     summary.Blown,
		"purchases": summary.Purchases,
		"plan50k":   summary.Plan50k,
		"active":    summary.Active,
		"skipped":   summary.Skipped,
	}).Info("roster pass complete")

	if e.publisher != nil {
		if err := e.publisher.Publish(ctx, summary); err != nil {
			logger.WithError(err).Warn("failed to publish run summary")
		}
	}

	return summary, nil
}

// processAccount classifies and persists one account.
func (e *Engine) processAccount(ctx context.Context, kind models.RunKind, acct models.Account, baselines map[string]float64, now time.Time, summary *models.RunSummary) {
	logger := logging.FromContext(ctx).WithField("accountId", acct.AccountID)

	st, err := e.statuses.Fetch(ctx, acct.AccountID)
	if err != nil {
		if !errors.Is(err, status.ErrUnavailable) {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Warn("status fetch failed, treating as unavailable")
		}
		st = nil
	}

	var baselineEquity *float64
	if eq, ok := baselines[acct.AccountID]; ok {
		baselineEquity = &eq
	}

	bucket, rec := classifier.Classify(acct, st, baselineEquity, now)

	if err := e.buckets.Upsert(ctx, bucket, &rec); err != nil {
		logger.WithError(err).WithField("bucket", bucket).Warn("failed to persist bucket record, skipping account")
		summary.Skipped++
		return
	}

	// Retraction runs after every successful upsert, not only on bucket
	// change, so membership self-heals from partial prior failures.
	if err := e.buckets.RetractFromOthers(ctx, acct.AccountID, bucket); err != nil {
		logger.WithError(err).Warn("failed to retract account from other buckets")
	}

	if kind == models.RunReseed && bucket == models.BucketActive && st != nil && st.Equity != nil {
		baseline := &models.BaselineRecord{
			AccountID:      acct.AccountID,
			BaselineEquity: *st.Equity,
			BaselineAt:     now,
		}
		if err := e.baselines.Upsert(ctx, baseline); err != nil {
			logger.WithError(err).Warn("failed to write baseline")
		}
	}

	switch bucket {
	case models.BucketBlown:
		summary.Blown++
	case models.BucketPurchases:
		summary.Purchases++
	case models.BucketPlan50k:
		summary.Plan50k++
	case models.BucketActive:
		summary.Active++
	}
}
