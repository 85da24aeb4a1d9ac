package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/account-tracker/internal/config"
	"github.com/account-tracker/internal/models"
	"github.com/account-tracker/internal/retry"
	"github.com/jackc/pgx/v5"
)

// BaselineRepository persists the weekly equity baselines. A reseed pass
// overwrites every baseline, an update pass only reads them.
type BaselineRepository struct {
	db       *PostgresDB
	table    string
	retryCfg retry.Config
}

// NewBaselineRepository creates a repository over the configured baseline table.
func NewBaselineRepository(db *PostgresDB, cfg config.TablesConfig) *BaselineRepository {
	return &BaselineRepository{
		db:       db,
		table:    cfg.Baseline,
		retryCfg: retry.DefaultConfig(),
	}
}

// LatestBaselineAt returns the most recent baseline timestamp, or nil when no
// baseline has ever been recorded. The scheduler uses this to decide between
// a reseed and an update pass.
func (r *BaselineRepository) LatestBaselineAt(ctx context.Context) (*time.Time, error) {
	query := fmt.Sprintf(`SELECT max(baseline_at) FROM %s`, pgx.Identifier{r.table}.Sanitize())

	var latest *time.Time
	err := retry.Do(ctx, r.retryCfg, func(ctx context.Context) error {
		if err := r.db.Pool().QueryRow(ctx, query).Scan(&latest); err != nil {
			return fmt.Errorf("failed to query latest baseline: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

// LoadAll returns every stored baseline equity keyed by account id. Loaded
// once at the start of an update pass so classification sees a consistent
// snapshot.
func (r *BaselineRepository) LoadAll(ctx context.Context) (map[string]float64, error) {
	query := fmt.Sprintf(`SELECT account_id, baseline_equity FROM %s`, pgx.Identifier{r.table}.Sanitize())

	baselines := make(map[string]float64)
	err := retry.Do(ctx, r.retryCfg, func(ctx context.Context) error {
		rows, err := r.db.Pool().Query(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to query baselines: %w", err)
		}
		defer rows.Close()

		clear(baselines)
		for rows.Next() {
			var accountID string
			var equity float64
			if err := rows.Scan(&accountID, &equity); err != nil {
				return fmt.Errorf("failed to scan baseline row: %w", err)
			}
			baselines[accountID] = equity
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating baseline rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return baselines, nil
}

// Upsert writes one baseline, overwriting any previous week's value.
func (r *BaselineRepository) Upsert(ctx context.Context, rec *models.BaselineRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (account_id, baseline_equity, baseline_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id)
		DO UPDATE SET
			baseline_equity = EXCLUDED.baseline_equity,
			baseline_at = EXCLUDED.baseline_at
	`, pgx.Identifier{r.table}.Sanitize())

	return retry.Do(ctx, r.retryCfg, func(ctx context.Context) error {
		if _, err := r.db.Pool().Exec(ctx, query, rec.AccountID, rec.BaselineEquity, rec.BaselineAt); err != nil {
			return fmt.Errorf("failed to upsert baseline: %w", err)
		}
		return nil
	})
}

// Count returns the number of stored baselines.
func (r *BaselineRepository) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s`, pgx.Identifier{r.table}.Sanitize())

	var count int
	if err := r.db.Pool().QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count baselines: %w", err)
	}
	return count, nil
}
