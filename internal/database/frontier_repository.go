package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// frontierUnion derives the crawl frontier from the links table: every URL
// that appears as a source or a target, deduplicated, keyed by the id of the
// link row that first mentioned it. The ordering is stable under append-only
// growth, so page N always returns the same URLs once written.
const frontierUnion = `
	SELECT url, MIN(id) AS first_seen FROM (
		SELECT source_url AS url, id FROM links
		UNION ALL
		SELECT target_url AS url, id FROM links
	) AS mentions
	GROUP BY url
`

// FrontierRepository reads the crawl frontier derived from stored links.
type FrontierRepository struct {
	db *sqlx.DB
}

// NewFrontierRepository creates a new frontier repository.
func NewFrontierRepository(db *sqlx.DB) *FrontierRepository {
	return &FrontierRepository{db: db}
}

// Batch returns one page of frontier URLs in stable order. Page numbers
// start at 1.
func (r *FrontierRepository) Batch(ctx context.Context, limit, page int) ([]string, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid frontier batch limit %d", limit)
	}

	if page < 1 {
		page = 1
	}

	query := `
		SELECT url FROM (` + frontierUnion + `) AS frontier
		ORDER BY first_seen, url
		LIMIT $1 OFFSET $2
	`

	var urls []string

	offset := (page - 1) * limit
	if err := r.db.SelectContext(ctx, &urls, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to fetch frontier batch: %w", err)
	}

	return urls, nil
}

// Seed inserts bootstrap URLs as self-referential link rows so they show
// up in the frontier before any crawl has produced links. Re-seeding the
// same URLs is a no-op.
func (r *FrontierRepository) Seed(ctx context.Context, urls []string, sessionID string) (int64, error) {
	query := `
		INSERT INTO links (source_url, target_url, anchor_text, context, is_nofollow, discovered_at, session_id)
		VALUES ($1, $1, NULL, NULL, FALSE, NOW(), $2)
		ON CONFLICT (source_url, target_url, session_id) DO NOTHING
	`

	var inserted int64

	for _, u := range urls {
		res, err := r.db.ExecContext(ctx, query, u, sessionID)
		if err != nil {
			return inserted, fmt.Errorf("failed to seed frontier url %s: %w", u, err)
		}

		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}

	return inserted, nil
}

// Count returns the total number of distinct frontier URLs.
func (r *FrontierRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM (` + frontierUnion + `) AS frontier`

	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count frontier: %w", err)
	}

	return count, nil
}
