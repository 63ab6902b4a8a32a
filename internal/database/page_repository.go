package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/TheBoringRats/ratcrowler/internal/domain"
)

// PageRepository handles database operations for crawled pages and their
// outbound links.
type PageRepository struct {
	db *sqlx.DB
}

// NewPageRepository creates a new page repository.
func NewPageRepository(db *sqlx.DB) *PageRepository {
	return &PageRepository{db: db}
}

// WritePageWithLinks persists one page and its outbound links atomically.
// Either the page row and every link row commit together or none do.
// Returns the number of rows written.
func (r *PageRepository) WritePageWithLinks(
	ctx context.Context,
	page *domain.Page,
	links []domain.Link,
) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin page transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	pageQuery := `
		INSERT INTO pages (
			url, title, meta_description, text, language, html_size, word_count,
			internal_links, external_links, http_status, response_time_ms,
			redirect_count, content_hash, crawled_at, session_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (url, session_id) DO UPDATE SET
			title = EXCLUDED.title,
			meta_description = EXCLUDED.meta_description,
			text = EXCLUDED.text,
			language = EXCLUDED.language,
			html_size = EXCLUDED.html_size,
			word_count = EXCLUDED.word_count,
			internal_links = EXCLUDED.internal_links,
			external_links = EXCLUDED.external_links,
			http_status = EXCLUDED.http_status,
			response_time_ms = EXCLUDED.response_time_ms,
			redirect_count = EXCLUDED.redirect_count,
			content_hash = EXCLUDED.content_hash,
			crawled_at = EXCLUDED.crawled_at
	`

	if _, err = tx.ExecContext(
		ctx, pageQuery,
		page.URL, page.Title, page.MetaDescription, page.Text, page.Language,
		page.HTMLSize, page.WordCount, page.InternalLinks, page.ExternalLinks,
		page.HTTPStatus, page.ResponseTimeMs, page.RedirectCount,
		page.ContentHash, page.CrawledAt, page.SessionID,
	); err != nil {
		return 0, fmt.Errorf("failed to write page: %w", err)
	}

	linkQuery := `
		INSERT INTO links (source_url, target_url, anchor_text, context, is_nofollow, discovered_at, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_url, target_url, session_id) DO NOTHING
	`

	for i := range links {
		link := &links[i]
		if _, err = tx.ExecContext(
			ctx, linkQuery,
			link.SourceURL, link.TargetURL, link.AnchorText, link.Context,
			link.IsNofollow, link.DiscoveredAt, link.SessionID,
		); err != nil {
			return 0, fmt.Errorf("failed to write link: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit page transaction: %w", err)
	}

	return int64(1 + len(links)), nil
}

// AlreadyCrawled reports whether the URL was crawled within the window.
func (r *PageRepository) AlreadyCrawled(ctx context.Context, url string, window time.Duration) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM pages WHERE url = $1 AND crawled_at > $2
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, url, time.Now().Add(-window)); err != nil {
		return false, fmt.Errorf("failed to check crawl recency: %w", err)
	}

	return exists, nil
}

// RecordError stores a per-URL fetch failure.
func (r *PageRepository) RecordError(ctx context.Context, crawlErr *domain.CrawlError) error {
	query := `
		INSERT INTO crawl_errors (url, kind, detail, occurred_at, session_id)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		crawlErr.URL, crawlErr.Kind, crawlErr.Detail,
		crawlErr.OccurredAt, crawlErr.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to record crawl error: %w", err)
	}

	return nil
}

// IterLinks streams every stored link to fn in insertion order without
// loading the full set into memory. Iteration stops on the first error.
func (r *PageRepository) IterLinks(ctx context.Context, fn func(link *domain.Link) error) error {
	query := `
		SELECT id, source_url, target_url, anchor_text, context, is_nofollow, discovered_at, session_id
		FROM links
		ORDER BY id
	`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var link domain.Link
		if scanErr := rows.StructScan(&link); scanErr != nil {
			return fmt.Errorf("failed to scan link: %w", scanErr)
		}

		if fnErr := fn(&link); fnErr != nil {
			return fnErr
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return fmt.Errorf("failed to iterate links: %w", rowsErr)
	}

	return nil
}

// Totals aggregates page and link counts for monitoring.
type Totals struct {
	Pages int64 `db:"pages"`
	Links int64 `db:"links"`
}

// CountTotals returns total stored pages and links.
func (r *PageRepository) CountTotals(ctx context.Context) (Totals, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM pages) AS pages,
			(SELECT COUNT(*) FROM links) AS links
	`

	var totals Totals
	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return Totals{}, fmt.Errorf("failed to count totals: %w", err)
	}

	return totals, nil
}
