package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/account-tracker/internal/config"
	"github.com/account-tracker/internal/models"
	"github.com/account-tracker/internal/retry"
	"github.com/jackc/pgx/v5"
)

// BucketRepository persists bucket records and enforces exclusive membership
// across the four bucket tables. All writes are idempotent, keyed by
// account_id, and transient failures are retried with backoff.
type BucketRepository struct {
	db       *PostgresDB
	tables   map[models.Bucket]string
	retryCfg retry.Config
}

// NewBucketRepository creates a repository over the configured bucket tables.
func NewBucketRepository(db *PostgresDB, cfg config.TablesConfig) *BucketRepository {
	return &BucketRepository{
		db: db,
		tables: map[models.Bucket]string{
			models.BucketActive:    cfg.Active,
			models.BucketBlown:     cfg.Blown,
			models.BucketPurchases: cfg.Purchases,
			models.BucketPlan50k:   cfg.Plan50k,
		},
		retryCfg: retry.DefaultConfig(),
	}
}

// Upsert writes the record into the bucket's table, refreshing updated_at on
// conflict. The column set varies per bucket: only active rows carry
// pct_change and only purchases rows carry group_name.
func (r *BucketRepository) Upsert(ctx context.Context, bucket models.Bucket, rec *models.BucketRecord) error {
	table, ok := r.tables[bucket]
	if !ok {
		return fmt.Errorf("unknown bucket %q", bucket)
	}

	base := "account_id, customer_name, country, plan, balance, equity, open_pnl"
	update := `customer_name = EXCLUDED.customer_name,
			country = EXCLUDED.country,
			plan = EXCLUDED.plan,
			balance = EXCLUDED.balance,
			equity = EXCLUDED.equity,
			open_pnl = EXCLUDED.open_pnl,
			updated_at = EXCLUDED.updated_at`

	args := []interface{}{
		rec.AccountID,
		rec.CustomerName,
		rec.Country,
		rec.Plan,
		rec.Balance,
		rec.Equity,
		rec.OpenPnL,
	}

	var extraCol string
	switch bucket {
	case models.BucketActive:
		extraCol = "pct_change"
		update += ", pct_change = EXCLUDED.pct_change"
		args = append(args, rec.PctChange)
	case models.BucketPurchases:
		extraCol = "group_name"
		update += ", group_name = EXCLUDED.group_name"
		args = append(args, rec.GroupName)
	}

	cols := base
	placeholders := "$1, $2, $3, $4, $5, $6, $7"
	if extraCol != "" {
		cols += ", " + extraCol
		placeholders += ", $8"
	}
	args = append(args, rec.UpdatedAt)
	cols += ", updated_at"
	placeholders += fmt.Sprintf(", $%d", len(args))

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s)
		ON CONFLICT (account_id)
		DO UPDATE SET %s
	`, pgx.Identifier{table}.Sanitize(), cols, placeholders, update)

	return retry.Do(ctx, r.retryCfg, func(ctx context.Context) error {
		if _, err := r.db.Pool().Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to upsert into %s: %w", table, err)
		}
		return nil
	})
}

// RetractFromOthers deletes the account from every bucket table except the
// one it was just written to. Running it on every pass, not only on bucket
// changes, makes membership self-healing after a partial prior failure.
func (r *BucketRepository) RetractFromOthers(ctx context.Context, accountID string, kept models.Bucket) error {
	var errs []error
	for _, bucket := range models.AllBuckets() {
		if bucket == kept {
			continue
		}
		table := r.tables[bucket]
		query := fmt.Sprintf(`DELETE FROM %s WHERE account_id = $1`, pgx.Identifier{table}.Sanitize())

		err := retry.Do(ctx, r.retryCfg, func(ctx context.Context) error {
			if _, err := r.db.Pool().Exec(ctx, query, accountID); err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table, err)
			}
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List returns up to limit records from a bucket table. Active rows are
// ordered by pct_change descending with nulls last, the other buckets by
// most recent update.
func (r *BucketRepository) List(ctx context.Context, bucket models.Bucket, limit int) ([]models.BucketRecord, error) {
	table, ok := r.tables[bucket]
	if !ok {
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}

	cols := "account_id, customer_name, country, plan, balance, equity, open_pnl, updated_at"
	order := "updated_at DESC"
	switch bucket {
	case models.BucketActive:
		cols += ", pct_change"
		order = "pct_change DESC NULLS LAST"
	case models.BucketPurchases:
		cols += ", group_name"
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s LIMIT $1`,
		cols, pgx.Identifier{table}.Sanitize(), order)

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	var records []models.BucketRecord
	for rows.Next() {
		var rec models.BucketRecord
		dest := []interface{}{
			&rec.AccountID,
			&rec.CustomerName,
			&rec.Country,
			&rec.Plan,
			&rec.Balance,
			&rec.Equity,
			&rec.OpenPnL,
			&rec.UpdatedAt,
		}
		switch bucket {
		case models.BucketActive:
			dest = append(dest, &rec.PctChange)
		case models.BucketPurchases:
			dest = append(dest, &rec.GroupName)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", table, err)
	}

	return records, nil
}

// TableCounts holds the row count of every persisted table.
type TableCounts struct {
	Active    int `json:"active"`
	Blown     int `json:"blown"`
	Purchases int `json:"purchases"`
	Plan50k   int `json:"plan50k"`
	Baseline  int `json:"baseline"`
}

// Counts returns the current row count of each bucket table.
func (r *BucketRepository) Counts(ctx context.Context) (*TableCounts, error) {
	counts := &TableCounts{}
	targets := []struct {
		bucket models.Bucket
		dest   *int
	}{
		{models.BucketActive, &counts.Active},
		{models.BucketBlown, &counts.Blown},
		{models.BucketPurchases, &counts.Purchases},
		{models.BucketPlan50k, &counts.Plan50k},
	}

	for _, target := range targets {
		table := r.tables[target.bucket]
		query := fmt.Sprintf(`SELECT count(*) FROM %s`, pgx.Identifier{table}.Sanitize())
		if err := r.db.Pool().QueryRow(ctx, query).Scan(target.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
	}
	return counts, nil
}
