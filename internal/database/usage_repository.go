package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/TheBoringRats/ratcrowler/internal/domain"
)

// UsageRepository persists rotation usage accounting so monthly write
// counters survive restarts.
type UsageRepository struct {
	db *sqlx.DB
}

// NewUsageRepository creates a new usage repository.
func NewUsageRepository(db *sqlx.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Load returns all stored usage rows keyed by database name.
func (r *UsageRepository) Load(ctx context.Context) (map[string]domain.DatabaseUsage, error) {
	query := `
		SELECT name, url, bytes_used, storage_quota_bytes, writes_this_month,
		       monthly_write_limit, last_health_check, status
		FROM database_usage
	`

	var rows []domain.DatabaseUsage
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load database usage: %w", err)
	}

	usage := make(map[string]domain.DatabaseUsage, len(rows))
	for _, row := range rows {
		usage[row.Name] = row
	}

	return usage, nil
}

// Flush upserts the given usage snapshot.
func (r *UsageRepository) Flush(ctx context.Context, usage []domain.DatabaseUsage) error {
	if len(usage) == 0 {
		return nil
	}

	query := `
		INSERT INTO database_usage (
			name, url, bytes_used, storage_quota_bytes, writes_this_month,
			monthly_write_limit, last_health_check, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			url = EXCLUDED.url,
			bytes_used = EXCLUDED.bytes_used,
			storage_quota_bytes = EXCLUDED.storage_quota_bytes,
			writes_this_month = EXCLUDED.writes_this_month,
			monthly_write_limit = EXCLUDED.monthly_write_limit,
			last_health_check = EXCLUDED.last_health_check,
			status = EXCLUDED.status
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin usage transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for i := range usage {
		u := &usage[i]
		if _, err = tx.ExecContext(
			ctx, query,
			u.Name, u.URL, u.BytesUsed, u.StorageQuotaBytes, u.WritesThisMonth,
			u.MonthlyWriteLimit, u.LastHealthCheck, u.Status,
		); err != nil {
			return fmt.Errorf("failed to upsert database usage: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage transaction: %w", err)
	}

	return nil
}

// SizeBytes returns the current on-disk size of the connected database.
func (r *UsageRepository) SizeBytes(ctx context.Context) (int64, error) {
	var size int64
	if err := r.db.GetContext(ctx, &size, `SELECT pg_database_size(current_database())`); err != nil {
		return 0, fmt.Errorf("failed to read database size: %w", err)
	}

	return size, nil
}
