package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/TheBoringRats/ratcrowler/internal/domain"
)

// SessionRepository handles database operations for crawl sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new active session.
func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (id, started_at, status, seed_count, config_json, target_db)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		session.ID, session.StartedAt, session.Status,
		session.SeedCount, &session.ConfigJSON, session.TargetDB,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// End marks a session completed or failed. Returns ErrSessionNotFound when
// the session does not exist.
func (r *SessionRepository) End(ctx context.Context, sessionID, status string, endedAt time.Time) error {
	query := `UPDATE sessions SET status = $2, ended_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, sessionID, status, endedAt)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	return execRequireRows(result, "end session", ErrSessionNotFound)
}

// Get returns a session by id.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
		SELECT id, started_at, ended_at, status, seed_count, config_json, target_db
		FROM sessions WHERE id = $1
	`

	var session domain.Session
	if err := r.db.GetContext(ctx, &session, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}
