package database_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/TheBoringRats/ratcrowler/internal/database"
	"github.com/TheBoringRats/ratcrowler/internal/domain"
	"github.com/TheBoringRats/ratcrowler/internal/logger"
)

// fakeRouter is a deterministic WriteRouter for store tests.
type fakeRouter struct {
	mu       sync.Mutex
	choices  []string
	writes   map[string]int64
	failures map[string]int
}

func newFakeRouter(choices ...string) *fakeRouter {
	return &fakeRouter{
		choices:  choices,
		writes:   make(map[string]int64),
		failures: make(map[string]int),
	}
}

func (f *fakeRouter) ChooseWriteTarget() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.choices) == 0 {
		return "", false
	}

	name := f.choices[0]
	f.choices = f.choices[1:]

	return name, true
}

func (f *fakeRouter) RecordWrite(name string, rows int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes[name] += rows
}

func (f *fakeRouter) RecordFailure(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[name]++
}

func newStore(t *testing.T, router database.WriteRouter, names ...string) (*database.Store, []sqlmock.Sqlmock) {
	t.Helper()

	targets := make([]*database.Target, 0, len(names))
	mocks := make([]sqlmock.Sqlmock, 0, len(names))

	for _, name := range names {
		mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}

		db := sqlx.NewDb(mockDB, "sqlmock")
		t.Cleanup(func() { db.Close() })

		targets = append(targets, database.NewTarget(name, db))
		mocks = append(mocks, mock)
	}

	store, err := database.NewStore(targets, router, logger.NewNoop())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	return store, mocks
}

func TestStore_BeginSession_NoCapacity(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, newFakeRouter(), "alpha")

	_, err := store.BeginSession(context.Background(), 10, nil)
	if !errors.Is(err, database.ErrNoCapacity) {
		t.Fatalf("BeginSession error = %v, want ErrNoCapacity", err)
	}
}

func TestStore_BeginSession_ChoosesRouterTarget(t *testing.T) {
	t.Parallel()

	router := newFakeRouter("beta")
	store, mocks := newStore(t, router, "alpha", "beta")

	mocks[1].ExpectExec(`INSERT INTO sessions`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	session, err := store.BeginSession(context.Background(), 25, domain.JSONBMap{"batch_size": 25})
	if err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}

	if session.TargetDB != "beta" {
		t.Errorf("TargetDB = %q, want beta", session.TargetDB)
	}

	if session.ID == "" {
		t.Error("session ID is empty")
	}

	if router.writes["beta"] != 1 {
		t.Errorf("writes recorded = %v", router.writes)
	}
}

func TestStore_WritePage_ChargesRows(t *testing.T) {
	t.Parallel()

	router := newFakeRouter()
	store, mocks := newStore(t, router, "alpha")

	mocks[0].ExpectBegin()
	mocks[0].ExpectExec(`INSERT INTO pages`).WillReturnResult(sqlmock.NewResult(1, 1))
	mocks[0].ExpectExec(`INSERT INTO links`).WillReturnResult(sqlmock.NewResult(1, 1))
	mocks[0].ExpectCommit()

	session := &domain.Session{ID: "sess-1", TargetDB: "alpha"}
	page := testPage()
	links := []domain.Link{{SourceURL: page.URL, TargetURL: "https://x.example/", SessionID: "sess-1"}}

	if err := store.WritePage(context.Background(), session, page, links); err != nil {
		t.Fatalf("WritePage returned error: %v", err)
	}

	if router.writes["alpha"] != 2 {
		t.Errorf("writes charged = %d, want 2 (page + link)", router.writes["alpha"])
	}
}

func TestStore_WritePage_ReroutesOnPersistentFailure(t *testing.T) {
	t.Parallel()

	router := newFakeRouter("beta")
	store, mocks := newStore(t, router, "alpha", "beta")

	// alpha fails without a transient classification, so no same-target
	// retries happen before rerouting.
	mocks[0].ExpectBegin().WillReturnError(errors.New("database is sealed"))

	mocks[1].ExpectBegin()
	mocks[1].ExpectExec(`INSERT INTO pages`).WillReturnResult(sqlmock.NewResult(1, 1))
	mocks[1].ExpectCommit()

	session := &domain.Session{ID: "sess-1", TargetDB: "alpha"}

	if err := store.WritePage(context.Background(), session, testPage(), nil); err != nil {
		t.Fatalf("WritePage returned error: %v", err)
	}

	if session.TargetDB != "beta" {
		t.Errorf("session target after reroute = %q, want beta", session.TargetDB)
	}

	if router.failures["alpha"] != 1 {
		t.Errorf("failures = %v, want alpha:1", router.failures)
	}
}

func TestStore_FrontierBatch_MergesAndDedupes(t *testing.T) {
	t.Parallel()

	store, mocks := newStore(t, newFakeRouter(), "alpha", "beta")

	mocks[0].ExpectQuery(`SELECT url FROM`).WillReturnRows(
		sqlmock.NewRows([]string{"url"}).
			AddRow("https://a.example/").
			AddRow("https://b.example/"))

	mocks[1].ExpectQuery(`SELECT url FROM`).WillReturnRows(
		sqlmock.NewRows([]string{"url"}).
			AddRow("https://b.example/").
			AddRow("https://c.example/"))

	urls, err := store.FrontierBatch(context.Background(), 10, 1)
	if err != nil {
		t.Fatalf("FrontierBatch returned error: %v", err)
	}

	want := []string{"https://a.example/", "https://b.example/", "https://c.example/"}
	if len(urls) != len(want) {
		t.Fatalf("FrontierBatch = %v, want %v", urls, want)
	}

	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestStore_AlreadyCrawled_ChecksAllTargets(t *testing.T) {
	t.Parallel()

	store, mocks := newStore(t, newFakeRouter(), "alpha", "beta")

	mocks[0].ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mocks[1].ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	crawled, err := store.AlreadyCrawled(context.Background(), "https://example.com/", 7*24*time.Hour)
	if err != nil {
		t.Fatalf("AlreadyCrawled returned error: %v", err)
	}

	if !crawled {
		t.Error("AlreadyCrawled = false, want true (found on second target)")
	}
}
