package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements is applied in order to every rotation target. All
// statements are idempotent so startup migration can run unconditionally.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		started_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		ended_at    TIMESTAMPTZ,
		status      TEXT NOT NULL DEFAULT 'active',
		seed_count  INTEGER NOT NULL DEFAULT 0,
		config_json JSONB NOT NULL DEFAULT '{}'::jsonb,
		target_db   TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS pages (
		id               BIGSERIAL PRIMARY KEY,
		url              TEXT NOT NULL,
		title            TEXT,
		meta_description TEXT,
		text             TEXT NOT NULL DEFAULT '',
		language         TEXT,
		html_size        INTEGER NOT NULL DEFAULT 0,
		word_count       INTEGER NOT NULL DEFAULT 0,
		internal_links   INTEGER NOT NULL DEFAULT 0,
		external_links   INTEGER NOT NULL DEFAULT 0,
		http_status      INTEGER NOT NULL DEFAULT 0,
		response_time_ms BIGINT NOT NULL DEFAULT 0,
		redirect_count   INTEGER NOT NULL DEFAULT 0,
		content_hash     TEXT NOT NULL DEFAULT '',
		crawled_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		session_id       TEXT NOT NULL,
		UNIQUE (url, session_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pages_url_crawled_at ON pages (url, crawled_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_pages_content_hash ON pages (content_hash)`,
	`CREATE TABLE IF NOT EXISTS links (
		id            BIGSERIAL PRIMARY KEY,
		source_url    TEXT NOT NULL,
		target_url    TEXT NOT NULL,
		anchor_text   TEXT,
		context       TEXT,
		is_nofollow   BOOLEAN NOT NULL DEFAULT FALSE,
		discovered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		session_id    TEXT NOT NULL,
		UNIQUE (source_url, target_url, session_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_target_url ON links (target_url)`,
	`CREATE INDEX IF NOT EXISTS idx_links_source_url ON links (source_url)`,
	`CREATE TABLE IF NOT EXISTS crawl_errors (
		id          BIGSERIAL PRIMARY KEY,
		url         TEXT NOT NULL,
		kind        TEXT NOT NULL,
		detail      TEXT,
		occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		session_id  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_crawl_errors_url ON crawl_errors (url)`,
	`CREATE TABLE IF NOT EXISTS domain_scores (
		domain            TEXT PRIMARY KEY,
		authority_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
		backlink_count    INTEGER NOT NULL DEFAULT 0,
		referring_domains INTEGER NOT NULL DEFAULT 0,
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS pagerank_scores (
		url        TEXT PRIMARY KEY,
		score      DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS database_usage (
		name                TEXT PRIMARY KEY,
		url                 TEXT NOT NULL DEFAULT '',
		bytes_used          BIGINT NOT NULL DEFAULT 0,
		storage_quota_bytes BIGINT NOT NULL DEFAULT 0,
		writes_this_month   BIGINT NOT NULL DEFAULT 0,
		monthly_write_limit BIGINT NOT NULL DEFAULT 0,
		last_health_check   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		status              TEXT NOT NULL DEFAULT 'healthy'
	)`,
}

// Migrate applies the schema to one database.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	return nil
}
