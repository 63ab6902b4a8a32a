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

func strPtr(s string) *string { return &s }

func testPage() *domain.Page {
	return &domain.Page{
		URL:            "https://example.com/post",
		Title:          strPtr("A Post"),
		Text:           "body text",
		HTMLSize:       2048,
		WordCount:      2,
		HTTPStatus:     200,
		ResponseTimeMs: 120,
		ContentHash:    "abc123",
		CrawledAt:      time.Now(),
		SessionID:      "sess-1",
	}
}

func TestPageRepository_WritePageWithLinks(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := database.NewPageRepository(db)

	page := testPage()
	links := []domain.Link{
		{SourceURL: page.URL, TargetURL: "https://other.example/", SessionID: "sess-1", DiscoveredAt: time.Now()},
		{SourceURL: page.URL, TargetURL: "https://more.example/", SessionID: "sess-1", DiscoveredAt: time.Now(), IsNofollow: true},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO pages`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO links`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO links`).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	rows, err := repo.WritePageWithLinks(context.Background(), page, links)
	if err != nil {
		t.Fatalf("WritePageWithLinks returned error: %v", err)
	}

	if rows != 3 {
		t.Errorf("rows = %d, want 3", rows)
	}

	expectationsMet(t, mock)
}

func TestPageRepository_WritePageWithLinks_RollsBackOnLinkError(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := database.NewPageRepository(db)

	page := testPage()
	links := []domain.Link{
		{SourceURL: page.URL, TargetURL: "https://other.example/", SessionID: "sess-1"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO pages`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO links`).WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	if _, err := repo.WritePageWithLinks(context.Background(), page, links); err == nil {
		t.Fatal("expected error when link insert fails")
	}

	expectationsMet(t, mock)
}

func TestPageRepository_AlreadyCrawled(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := database.NewPageRepository(db)

	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	crawled, err := repo.AlreadyCrawled(context.Background(), "https://example.com/", 7*24*time.Hour)
	if err != nil {
		t.Fatalf("AlreadyCrawled returned error: %v", err)
	}

	if !crawled {
		t.Error("AlreadyCrawled = false, want true")
	}

	expectationsMet(t, mock)
}

func TestPageRepository_IterLinks(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := database.NewPageRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "source_url", "target_url", "anchor_text", "context",
		"is_nofollow", "discovered_at", "session_id",
	}).
		AddRow(1, "https://a.example/", "https://b.example/", nil, nil, false, time.Now(), "sess-1").
		AddRow(2, "https://b.example/", "https://c.example/", "click", nil, true, time.Now(), "sess-1")

	mock.ExpectQuery(`SELECT id, source_url, target_url`).WillReturnRows(rows)

	var got []domain.Link

	err := repo.IterLinks(context.Background(), func(link *domain.Link) error {
		got = append(got, *link)
		return nil
	})
	if err != nil {
		t.Fatalf("IterLinks returned error: %v", err)
	}

	if len(got) != 2 || !got[1].IsNofollow {
		t.Errorf("IterLinks collected %v", got)
	}

	expectationsMet(t, mock)
}

func TestPageRepository_IterLinks_StopsOnCallbackError(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := database.NewPageRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "source_url", "target_url", "anchor_text", "context",
		"is_nofollow", "discovered_at", "session_id",
	}).
		AddRow(1, "https://a.example/", "https://b.example/", nil, nil, false, time.Now(), "sess-1").
		AddRow(2, "https://b.example/", "https://c.example/", nil, nil, false, time.Now(), "sess-1")

	mock.ExpectQuery(`SELECT id, source_url, target_url`).WillReturnRows(rows)

	sentinel := errors.New("stop")
	calls := 0

	err := repo.IterLinks(context.Background(), func(*domain.Link) error {
		calls++
		return sentinel
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("IterLinks error = %v, want sentinel", err)
	}

	if calls != 1 {
		t.Errorf("callback called %d times, want 1", calls)
	}
}

func TestPageRepository_RecordError(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := database.NewPageRepository(db)

	mock.ExpectExec(`INSERT INTO crawl_errors`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	crawlErr := &domain.CrawlError{
		URL:        "https://down.example/",
		Kind:       "timeout",
		OccurredAt: time.Now(),
		SessionID:  "sess-1",
	}

	if err := repo.RecordError(context.Background(), crawlErr); err != nil {
		t.Fatalf("RecordError returned error: %v", err)
	}

	expectationsMet(t, mock)
}
