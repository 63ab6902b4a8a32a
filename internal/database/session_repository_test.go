package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/TheBoringRats/ratcrowler/internal/database"
	"github.com/TheBoringRats/ratcrowler/internal/domain"
)

func TestSessionRepository_Create(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := database.NewSessionRepository(db)

	session := &domain.Session{
		ID:         "sess-1",
		StartedAt:  time.Now(),
		Status:     domain.SessionStatusActive,
		SeedCount:  50,
		ConfigJSON: domain.JSONBMap{"batch_size": 50},
		TargetDB:   "primary",
	}

	mock.ExpectExec(`INSERT INTO sessions`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	expectationsMet(t, mock)
}

func TestSessionRepository_End(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := database.NewSessionRepository(db)

	mock.ExpectExec(`UPDATE sessions SET status`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.End(context.Background(), "sess-1", domain.SessionStatusCompleted, time.Now())
	if err != nil {
		t.Fatalf("End returned error: %v", err)
	}

	expectationsMet(t, mock)
}

func TestSessionRepository_End_NotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := database.NewSessionRepository(db)

	mock.ExpectExec(`UPDATE sessions SET status`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.End(context.Background(), "missing", domain.SessionStatusFailed, time.Now())
	if !errors.Is(err, database.ErrSessionNotFound) {
		t.Fatalf("End error = %v, want ErrSessionNotFound", err)
	}

	expectationsMet(t, mock)
}
