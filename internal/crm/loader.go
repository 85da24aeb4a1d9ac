// Package crm loads the account roster from the upstream CRM store. The CRM
// schema is owned by another team, so table and column names come from
// configuration.
package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/account-tracker/internal/config"
	"github.com/account-tracker/internal/logging"
	"github.com/account-tracker/internal/models"
	"github.com/account-tracker/internal/retry"
	"github.com/account-tracker/internal/storage"
	"github.com/jackc/pgx/v5"
)

// Row is one raw roster row. All columns are nullable; missing values never
// fail the load.
type Row struct {
	AccountID    *string
	CustomerName *string
	Template     *string
}

// RosterLoader pages through the CRM table and produces the working account
// set for one pass.
type RosterLoader struct {
	db       *storage.PostgresDB
	cfg      config.CRMConfig
	retryCfg retry.Config
	query    string
}

// NewRosterLoader creates a loader for the configured CRM table.
func NewRosterLoader(db *storage.PostgresDB, cfg config.CRMConfig) *RosterLoader {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	query := fmt.Sprintf(
		`SELECT %s, %s, %s FROM %s ORDER BY %s LIMIT $1 OFFSET $2`,
		pgx.Identifier{cfg.AccountIDCol}.Sanitize(),
		pgx.Identifier{cfg.CustomerCol}.Sanitize(),
		pgx.Identifier{cfg.TemplateCol}.Sanitize(),
		pgx.Identifier{cfg.Table}.Sanitize(),
		pgx.Identifier{cfg.AccountIDCol}.Sanitize(),
	)
	return &RosterLoader{
		db:       db,
		cfg:      cfg,
		retryCfg: retry.DefaultConfig(),
		query:    query,
	}
}

// LoadAll returns the full de-duplicated roster with purchases-tagged rows
// excluded, in stable load order.
func (l *RosterLoader) LoadAll(ctx context.Context) ([]models.Account, error) {
	return Collect(ctx, l.cfg.PageSize, l.fetchPage)
}

// PageFunc fetches one roster window [offset, offset+limit).
type PageFunc func(ctx context.Context, limit, offset int) ([]Row, error)

// Collect drives offset pagination over fetch until a page comes back empty
// or short, filtering and de-duplicating as it goes.
func Collect(ctx context.Context, pageSize int, fetch PageFunc) ([]models.Account, error) {
	logger := logging.FromContext(ctx)

	var accounts []models.Account
	seen := make(map[string]struct{})
	offset := 0
	for {
		rows, err := fetch(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch roster page at offset %d: %w", offset, err)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			acct, ok := keep(row)
			if !ok {
				continue
			}
			if _, dup := seen[acct.AccountID]; dup {
				continue
			}
			seen[acct.AccountID] = struct{}{}
			accounts = append(accounts, acct)
		}

		logger.WithFields(map[string]interface{}{
			"page":  len(rows),
			"total": len(accounts),
		}).Debug("loaded roster page")

		if len(rows) < pageSize {
			break
		}
		offset += pageSize
	}

	logger.WithField("accounts", len(accounts)).Info("roster loaded")
	return accounts, nil
}

// keep applies the pre-classification exclusion rules: rows without an
// account id are unusable, and rows whose template tag mentions "purchases"
// never reach the classifier. This tag filter is independent of the purchase
// group reported later by the status API.
func keep(row Row) (models.Account, bool) {
	if row.AccountID == nil {
		return models.Account{}, false
	}
	id := strings.TrimSpace(*row.AccountID)
	if id == "" {
		return models.Account{}, false
	}
	if row.Template != nil && strings.Contains(strings.ToLower(*row.Template), "purchases") {
		return models.Account{}, false
	}
	return models.Account{AccountID: id, CustomerName: row.CustomerName}, true
}

// fetchPage reads one window from the CRM table, retrying transient errors.
func (l *RosterLoader) fetchPage(ctx context.Context, limit, offset int) ([]Row, error) {
	var out []Row
	err := retry.Do(ctx, l.retryCfg, func(ctx context.Context) error {
		rows, err := l.db.Pool().Query(ctx, l.query, limit, offset)
		if err != nil {
			return fmt.Errorf("failed to query CRM table: %w", err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var row Row
			if err := rows.Scan(&row.AccountID, &row.CustomerName, &row.Template); err != nil {
				return fmt.Errorf("failed to scan CRM row: %w", err)
			}
			out = append(out, row)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating CRM rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
