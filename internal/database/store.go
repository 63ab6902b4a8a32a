package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/TheBoringRats/ratcrowler/internal/domain"
	"github.com/TheBoringRats/ratcrowler/internal/logger"
)

// WriteRouter decides which rotation target receives the next write.
// Implemented by the rotation manager.
type WriteRouter interface {
	// ChooseWriteTarget returns the name of the least-loaded eligible
	// target, or false when every target is excluded.
	ChooseWriteTarget() (string, bool)
	// RecordWrite charges rows against the target's monthly quota.
	RecordWrite(name string, rows int64)
	// RecordFailure reports a failed write so health tracking can react.
	RecordFailure(name string)
}

// Target is one named database handle with its repositories.
type Target struct {
	Name     string
	DB       *sqlx.DB
	Frontier *FrontierRepository
	Pages    *PageRepository
	Sessions *SessionRepository
}

// NewTarget wraps a database handle with repositories.
func NewTarget(name string, db *sqlx.DB) *Target {
	return &Target{
		Name:     name,
		DB:       db,
		Frontier: NewFrontierRepository(db),
		Pages:    NewPageRepository(db),
		Sessions: NewSessionRepository(db),
	}
}

// Store is the persistence surface the scheduler and analyzer talk to. It
// spans every rotation target: reads merge across all of them, writes go to
// the target the router picks. Analysis scores and usage accounting live on
// the first configured target.
type Store struct {
	targets []*Target
	byName  map[string]*Target
	router  WriteRouter
	scores  *ScoreRepository
	usage   *UsageRepository
	log     logger.Interface
}

// NewStore creates a store over the given targets. At least one target is
// required; the first one holds scores and usage metadata.
func NewStore(targets []*Target, router WriteRouter, log logger.Interface) (*Store, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("store requires at least one database target")
	}

	byName := make(map[string]*Target, len(targets))
	for _, t := range targets {
		byName[t.Name] = t
	}

	return &Store{
		targets: targets,
		byName:  byName,
		router:  router,
		scores:  NewScoreRepository(targets[0].DB),
		usage:   NewUsageRepository(targets[0].DB),
		log:     log,
	}, nil
}

// Migrate applies the schema to every target.
func (s *Store) Migrate(ctx context.Context) error {
	for _, t := range s.targets {
		if err := Migrate(ctx, t.DB); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", t.Name, err)
		}
	}

	return nil
}

// Ping verifies connectivity to one named target.
func (s *Store) Ping(ctx context.Context, name string) error {
	t, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("unknown database target %q", name)
	}

	return t.DB.PingContext(ctx)
}

// SizeBytes returns the on-disk size of one named target.
func (s *Store) SizeBytes(ctx context.Context, name string) (int64, error) {
	t, ok := s.byName[name]
	if !ok {
		return 0, fmt.Errorf("unknown database target %q", name)
	}

	return NewUsageRepository(t.DB).SizeBytes(ctx)
}

// FrontierBatch returns one page of the merged frontier in stable order.
// Per-target ordering is by first mention; across targets, configuration
// order wins and the first occurrence of a duplicate URL is kept.
func (s *Store) FrontierBatch(ctx context.Context, limit, page int) ([]string, error) {
	if page < 1 {
		page = 1
	}

	// Each target contributes at most the first page*limit URLs of its own
	// ordered frontier; the merged prefix is complete up to the requested
	// offset.
	prefix := page * limit

	seen := make(map[string]struct{})
	merged := make([]string, 0, prefix)

	for _, t := range s.targets {
		var urls []string

		err := withRetry(ctx, s.log, "frontier batch", func() error {
			var opErr error
			urls, opErr = t.Frontier.Batch(ctx, prefix, 1)
			return opErr
		})
		if err != nil {
			return nil, fmt.Errorf("frontier batch from %s: %w", t.Name, err)
		}

		for _, u := range urls {
			if _, dup := seen[u]; dup {
				continue
			}

			seen[u] = struct{}{}
			merged = append(merged, u)
		}
	}

	offset := (page - 1) * limit
	if offset >= len(merged) {
		return nil, nil
	}

	end := offset + limit
	if end > len(merged) {
		end = len(merged)
	}

	return merged[offset:end], nil
}

// CountFrontier returns the summed frontier size across targets. The sum is
// monotone under append-only growth, which is what idle rescan needs.
func (s *Store) CountFrontier(ctx context.Context) (int, error) {
	var total int

	for _, t := range s.targets {
		var count int

		err := withRetry(ctx, s.log, "frontier count", func() error {
			var opErr error
			count, opErr = t.Frontier.Count(ctx)
			return opErr
		})
		if err != nil {
			return 0, fmt.Errorf("frontier count from %s: %w", t.Name, err)
		}

		total += count
	}

	return total, nil
}

// AlreadyCrawled reports whether any target holds a page row for the URL
// newer than the window.
func (s *Store) AlreadyCrawled(ctx context.Context, url string, window time.Duration) (bool, error) {
	for _, t := range s.targets {
		var crawled bool

		err := withRetry(ctx, s.log, "crawl recency", func() error {
			var opErr error
			crawled, opErr = t.Pages.AlreadyCrawled(ctx, url, window)
			return opErr
		})
		if err != nil {
			return false, fmt.Errorf("crawl recency from %s: %w", t.Name, err)
		}

		if crawled {
			return true, nil
		}
	}

	return false, nil
}

// SeedFrontier inserts bootstrap URLs on a rotation-chosen target so a
// fresh deployment has something to crawl. Idempotent; already-seeded URLs
// are skipped and not charged.
func (s *Store) SeedFrontier(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	name, ok := s.router.ChooseWriteTarget()
	if !ok {
		return ErrNoCapacity
	}

	target := s.byName[name]
	if target == nil {
		return fmt.Errorf("router chose unknown target %q", name)
	}

	var inserted int64

	err := withRetry(ctx, s.log, "seed frontier", func() error {
		var opErr error
		inserted, opErr = target.Frontier.Seed(ctx, urls, "seed")
		return opErr
	})
	if err != nil {
		s.router.RecordFailure(name)
		return fmt.Errorf("seed frontier on %s: %w", name, err)
	}

	if inserted > 0 {
		s.router.RecordWrite(name, inserted)
		s.log.Info("seeded frontier", "database", name, "urls", inserted)
	}

	return nil
}

// BeginSession picks a write target and creates a session row on it.
// Returns ErrNoCapacity when rotation has no eligible target.
func (s *Store) BeginSession(ctx context.Context, seedCount int, cfg domain.JSONBMap) (*domain.Session, error) {
	name, ok := s.router.ChooseWriteTarget()
	if !ok {
		return nil, ErrNoCapacity
	}

	target := s.byName[name]
	if target == nil {
		return nil, fmt.Errorf("router chose unknown target %q", name)
	}

	session := &domain.Session{
		ID:         uuid.New().String(),
		StartedAt:  time.Now().UTC(),
		Status:     domain.SessionStatusActive,
		SeedCount:  seedCount,
		ConfigJSON: cfg,
		TargetDB:   name,
	}

	err := withRetry(ctx, s.log, "create session", func() error {
		return target.Sessions.Create(ctx, session)
	})
	if err != nil {
		s.router.RecordFailure(name)
		return nil, fmt.Errorf("create session on %s: %w", name, err)
	}

	s.router.RecordWrite(name, 1)

	return session, nil
}

// WritePage persists a page and its links to the session's target. When the
// target fails persistently the write is rerouted once to the next eligible
// target; with nowhere left to go, ErrNoCapacity surfaces and the batch must
// stop.
func (s *Store) WritePage(ctx context.Context, session *domain.Session, page *domain.Page, links []domain.Link) error {
	rows, err := s.writePageTo(ctx, session.TargetDB, page, links)
	if err == nil {
		s.router.RecordWrite(session.TargetDB, rows)
		return nil
	}

	s.router.RecordFailure(session.TargetDB)
	s.log.Warn("page write failed, rerouting",
		"database", session.TargetDB,
		"url", page.URL,
		"error", err)

	name, ok := s.router.ChooseWriteTarget()
	if !ok || name == session.TargetDB {
		return fmt.Errorf("write page for %s: %w", page.URL, ErrNoCapacity)
	}

	rows, err = s.writePageTo(ctx, name, page, links)
	if err != nil {
		s.router.RecordFailure(name)
		return fmt.Errorf("write page for %s on %s: %w", page.URL, name, err)
	}

	s.router.RecordWrite(name, rows)
	session.TargetDB = name

	return nil
}

func (s *Store) writePageTo(ctx context.Context, name string, page *domain.Page, links []domain.Link) (int64, error) {
	target := s.byName[name]
	if target == nil {
		return 0, fmt.Errorf("unknown database target %q", name)
	}

	var rows int64

	err := withRetry(ctx, s.log, "write page", func() error {
		var opErr error
		rows, opErr = target.Pages.WritePageWithLinks(ctx, page, links)
		return opErr
	})

	return rows, err
}

// RecordError stores a crawl failure on the session's target.
func (s *Store) RecordError(ctx context.Context, session *domain.Session, crawlErr *domain.CrawlError) error {
	target := s.byName[session.TargetDB]
	if target == nil {
		return fmt.Errorf("unknown database target %q", session.TargetDB)
	}

	err := withRetry(ctx, s.log, "record error", func() error {
		return target.Pages.RecordError(ctx, crawlErr)
	})
	if err != nil {
		return fmt.Errorf("record crawl error on %s: %w", session.TargetDB, err)
	}

	s.router.RecordWrite(session.TargetDB, 1)

	return nil
}

// EndSession marks the session completed or failed on its target.
func (s *Store) EndSession(ctx context.Context, session *domain.Session, status string) error {
	target := s.byName[session.TargetDB]
	if target == nil {
		return fmt.Errorf("unknown database target %q", session.TargetDB)
	}

	err := withRetry(ctx, s.log, "end session", func() error {
		return target.Sessions.End(ctx, session.ID, status, time.Now().UTC())
	})
	if err != nil {
		return fmt.Errorf("end session on %s: %w", session.TargetDB, err)
	}

	s.router.RecordWrite(session.TargetDB, 1)

	return nil
}

// IterLinks streams every stored link across all targets, one target at a
// time in configuration order.
func (s *Store) IterLinks(ctx context.Context, fn func(link *domain.Link) error) error {
	for _, t := range s.targets {
		if err := t.Pages.IterLinks(ctx, fn); err != nil {
			return fmt.Errorf("iterate links from %s: %w", t.Name, err)
		}
	}

	return nil
}

// UpsertDomainScores writes domain authority scores to the metadata target.
func (s *Store) UpsertDomainScores(ctx context.Context, scores []domain.DomainScore) error {
	return withRetry(ctx, s.log, "upsert domain scores", func() error {
		return s.scores.UpsertDomainScores(ctx, scores)
	})
}

// UpsertPageRankScores writes PageRank scores to the metadata target.
func (s *Store) UpsertPageRankScores(ctx context.Context, scores []domain.PageRankScore) error {
	return withRetry(ctx, s.log, "upsert pagerank scores", func() error {
		return s.scores.UpsertPageRankScores(ctx, scores)
	})
}

// LoadUsage reads persisted rotation accounting from the metadata target.
func (s *Store) LoadUsage(ctx context.Context) (map[string]domain.DatabaseUsage, error) {
	return s.usage.Load(ctx)
}

// FlushUsage persists rotation accounting to the metadata target.
func (s *Store) FlushUsage(ctx context.Context, usage []domain.DatabaseUsage) error {
	return withRetry(ctx, s.log, "flush usage", func() error {
		return s.usage.Flush(ctx, usage)
	})
}

// CountTotals sums stored pages and links across targets.
func (s *Store) CountTotals(ctx context.Context) (Totals, error) {
	var totals Totals

	for _, t := range s.targets {
		part, err := t.Pages.CountTotals(ctx)
		if err != nil {
			return Totals{}, fmt.Errorf("count totals from %s: %w", t.Name, err)
		}

		totals.Pages += part.Pages
		totals.Links += part.Links
	}

	return totals, nil
}

// Close closes every target handle.
func (s *Store) Close() error {
	var firstErr error

	for _, t := range s.targets {
		if err := t.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
