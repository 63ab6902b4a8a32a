package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/TheBoringRats/ratcrowler/internal/domain"
)

// ScoreRepository handles database operations for analysis scores.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository creates a new score repository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// UpsertDomainScores writes domain authority scores, replacing existing rows
// per domain. Re-running with identical input leaves identical state.
func (r *ScoreRepository) UpsertDomainScores(ctx context.Context, scores []domain.DomainScore) error {
	if len(scores) == 0 {
		return nil
	}

	query := `
		INSERT INTO domain_scores (domain, authority_score, backlink_count, referring_domains, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (domain) DO UPDATE SET
			authority_score = EXCLUDED.authority_score,
			backlink_count = EXCLUDED.backlink_count,
			referring_domains = EXCLUDED.referring_domains,
			updated_at = EXCLUDED.updated_at
	`

	return r.upsertAll(ctx, "domain scores", func(tx *sqlx.Tx) error {
		for i := range scores {
			s := &scores[i]
			if _, err := tx.ExecContext(
				ctx, query,
				s.Domain, s.AuthorityScore, s.BacklinkCount, s.ReferringDomains, s.UpdatedAt,
			); err != nil {
				return fmt.Errorf("failed to upsert domain score: %w", err)
			}
		}

		return nil
	})
}

// UpsertPageRankScores writes PageRank scores, replacing existing rows per URL.
func (r *ScoreRepository) UpsertPageRankScores(ctx context.Context, scores []domain.PageRankScore) error {
	if len(scores) == 0 {
		return nil
	}

	query := `
		INSERT INTO pagerank_scores (url, score, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (url) DO UPDATE SET
			score = EXCLUDED.score,
			updated_at = EXCLUDED.updated_at
	`

	return r.upsertAll(ctx, "pagerank scores", func(tx *sqlx.Tx) error {
		for i := range scores {
			s := &scores[i]
			if _, err := tx.ExecContext(ctx, query, s.URL, s.Score, s.UpdatedAt); err != nil {
				return fmt.Errorf("failed to upsert pagerank score: %w", err)
			}
		}

		return nil
	})
}

// upsertAll runs fn inside one transaction so a score pass lands atomically.
func (r *ScoreRepository) upsertAll(ctx context.Context, what string, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin %s transaction: %w", what, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s transaction: %w", what, err)
	}

	return nil
}
