// Package main imports a CRM roster export (CSV) into the local CRM table.
// Intended for development and for environments without direct CRM access.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/account-tracker/internal/config"
	"github.com/account-tracker/internal/storage"
	"github.com/jackc/pgx/v5"
)

const chunkSize = 500

func main() {
	var (
		file = flag.String("file", "", "Path to the CSV export (account id, customer name, template)")
	)
	flag.Parse()

	if *file == "" {
		log.Fatal("-file is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	postgres, err := storage.NewPostgresDB(&cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgres.Close()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("Failed to open CSV: %v", err)
	}
	defer f.Close()

	imported, dropped, err := importCSV(context.Background(), postgres, cfg.CRM, f)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	log.Printf("Imported %d rows (%d dropped)", imported, dropped)
}

type rosterRow struct {
	accountID string
	customer  string
	template  string
}

// importCSV streams the file into the CRM table in chunks. Rows with a blank
// account id or a purchases-tagged template are dropped here so they never
// enter the roster at all.
func importCSV(ctx context.Context, db *storage.PostgresDB, cfg config.CRMConfig, r io.Reader) (imported, dropped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < 3 {
		return 0, 0, fmt.Errorf("expected at least 3 columns (account id, customer name, template), got %d", len(header))
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s)
		VALUES ($1, $2, $3)
		ON CONFLICT (%s)
		DO UPDATE SET %s = EXCLUDED.%s, %s = EXCLUDED.%s
	`,
		pgx.Identifier{cfg.Table}.Sanitize(),
		pgx.Identifier{cfg.AccountIDCol}.Sanitize(),
		pgx.Identifier{cfg.CustomerCol}.Sanitize(),
		pgx.Identifier{cfg.TemplateCol}.Sanitize(),
		pgx.Identifier{cfg.AccountIDCol}.Sanitize(),
		pgx.Identifier{cfg.CustomerCol}.Sanitize(),
		pgx.Identifier{cfg.CustomerCol}.Sanitize(),
		pgx.Identifier{cfg.TemplateCol}.Sanitize(),
		pgx.Identifier{cfg.TemplateCol}.Sanitize(),
	)

	chunk := make([]rosterRow, 0, chunkSize)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, row := range chunk {
			batch.Queue(query, row.accountID, row.customer, row.template)
		}
		if err := db.Pool().SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to write chunk: %w", err)
		}
		imported += len(chunk)
		chunk = chunk[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, dropped, fmt.Errorf("failed to read CSV row: %w", err)
		}
		if len(record) < 3 {
			dropped++
			continue
		}

		row := rosterRow{
			accountID: strings.TrimSpace(record[0]),
			customer:  strings.TrimSpace(record[1]),
			template:  strings.TrimSpace(record[2]),
		}
		if row.accountID == "" || strings.Contains(strings.ToLower(row.template), "purchases") {
			dropped++
			continue
		}

		chunk = append(chunk, row)
		if len(chunk) >= chunkSize {
			if err := flush(); err != nil {
				return imported, dropped, err
			}
		}
	}

	if err := flush(); err != nil {
		return imported, dropped, err
	}
	return imported, dropped, nil
}
