// Package scheduler drives the crawl: it resumes from the durable progress
// record, pulls frontier batches, runs them through the fetch pipeline, and
// commits progress after every batch.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TheBoringRats/ratcrowler/internal/domain"
	"github.com/TheBoringRats/ratcrowler/internal/extractor"
	"github.com/TheBoringRats/ratcrowler/internal/fetcher"
	"github.com/TheBoringRats/ratcrowler/internal/logger"
	"github.com/TheBoringRats/ratcrowler/internal/metrics"
)

// Timing defaults.
const (
	// DrainGrace is how long in-flight URLs get to finish after a drain
	// request before they are cancelled.
	DrainGrace = 30 * time.Second
	// DefaultIdlePoll is how often an idle scheduler re-counts the
	// frontier looking for growth.
	DefaultIdlePoll = 30 * time.Second

	// batchURLBudget and minBatchDeadline bound one batch: ten seconds
	// per URL, never less than five minutes, so a stalled batch cannot
	// wedge the loop.
	batchURLBudget   = 10 * time.Second
	minBatchDeadline = 5 * time.Minute
)

// batchDeadline returns the wall-clock budget for a batch of n URLs.
func batchDeadline(n int) time.Duration {
	d := time.Duration(n) * batchURLBudget
	if d < minBatchDeadline {
		d = minBatchDeadline
	}

	return d
}

// Store is the persistence surface the scheduler needs.
type Store interface {
	FrontierBatch(ctx context.Context, limit, page int) ([]string, error)
	CountFrontier(ctx context.Context) (int, error)
	AlreadyCrawled(ctx context.Context, url string, window time.Duration) (bool, error)
	BeginSession(ctx context.Context, seedCount int, cfg domain.JSONBMap) (*domain.Session, error)
	WritePage(ctx context.Context, session *domain.Session, page *domain.Page, links []domain.Link) error
	RecordError(ctx context.Context, session *domain.Session, crawlErr *domain.CrawlError) error
	EndSession(ctx context.Context, session *domain.Session, status string) error
}

// Fetcher downloads one URL.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) *fetcher.Result
}

// ProgressTracker loads and commits the durable checkpoint.
type ProgressTracker interface {
	Load(batchSize int) (domain.Progress, error)
	Commit(p domain.Progress) error
}

// Config holds scheduler settings.
type Config struct {
	BatchSize     int
	Workers       int
	RecrawlWindow time.Duration
	IdlePoll      time.Duration
	SessionConfig domain.JSONBMap
}

// Scheduler runs the batch loop. One Scheduler instance owns the progress
// record; nothing else writes it while Run is active.
type Scheduler struct {
	cfg      Config
	store    Store
	fetcher  Fetcher
	progress ProgressTracker
	metrics  *metrics.Metrics
	log      logger.Interface

	drainOnce sync.Once
	drainCh   chan struct{}
}

// New creates a scheduler.
func New(
	cfg Config,
	store Store,
	f Fetcher,
	tracker ProgressTracker,
	m *metrics.Metrics,
	log logger.Interface,
) *Scheduler {
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = DefaultIdlePoll
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	return &Scheduler{
		cfg:      cfg,
		store:    store,
		fetcher:  f,
		progress: tracker,
		metrics:  m,
		log:      log,
		drainCh:  make(chan struct{}),
	}
}

// Drain asks the scheduler to stop after the current batch. In-flight URLs
// get DrainGrace to finish; the batch commits without a page increment when
// it was not fully consumed. Safe to call more than once.
func (s *Scheduler) Drain() {
	s.drainOnce.Do(func() { close(s.drainCh) })
}

// draining reports whether a drain has been requested.
func (s *Scheduler) draining() bool {
	select {
	case <-s.drainCh:
		return true
	default:
		return false
	}
}

// Run executes the batch loop until drained or the context is cancelled.
// A nil return means a clean stop; store failures and progress commit
// failures surface as errors.
func (s *Scheduler) Run(ctx context.Context) error {
	p, err := s.progress.Load(s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}

	// A batch size change takes effect on the next fetched batch; the page
	// number is deliberately not rescaled.
	if p.BatchSize != s.cfg.BatchSize {
		s.log.Info("batch size changed",
			"previous", p.BatchSize,
			"current", s.cfg.BatchSize)
		p.BatchSize = s.cfg.BatchSize
	}

	p.Running = true

	s.log.Info("scheduler starting",
		"current_page", p.CurrentPage,
		"batch_size", p.BatchSize,
		"urls_processed", p.Processed)

	defer func() {
		p.Running = false
		p.ActiveSessionID = ""

		if commitErr := s.progress.Commit(p); commitErr != nil {
			s.log.Error("failed to commit final progress", "error", commitErr)
		}
	}()

	// TotalURLs is the frontier size seen when the current scan started;
	// it only moves when a rescan begins, so idle growth detection has a
	// fixed baseline.
	if p.TotalURLs == 0 {
		total, countErr := s.store.CountFrontier(ctx)
		if countErr != nil {
			return fmt.Errorf("count frontier: %w", countErr)
		}

		p.TotalURLs = total
	}

	for {
		if ctx.Err() != nil || s.draining() {
			return nil
		}

		batch, err := s.store.FrontierBatch(ctx, p.BatchSize, p.CurrentPage)
		if err != nil {
			return fmt.Errorf("fetch frontier batch: %w", err)
		}

		if len(batch) == 0 {
			if !s.idle(ctx, &p) {
				return nil
			}

			continue
		}

		completed, err := s.runBatch(ctx, &p, batch)
		if err != nil {
			// Commit what we have before surfacing the failure; the page
			// is not advanced so the batch reruns after restart.
			if commitErr := s.progress.Commit(p); commitErr != nil {
				s.log.Error("failed to commit progress after batch failure", "error", commitErr)
			}

			return err
		}

		if completed {
			p.CurrentPage++
			s.metrics.RecordBatch()
		}

		if err := s.progress.Commit(p); err != nil {
			return fmt.Errorf("commit progress: %w", err)
		}
	}
}

// idle waits for frontier growth. Returns false when the scheduler should
// stop instead of continuing the loop.
func (s *Scheduler) idle(ctx context.Context, p *domain.Progress) bool {
	// The frontier may have grown past a previously exhausted page count;
	// rescan from the first page to pick up URLs skipped earlier.
	count, err := s.store.CountFrontier(ctx)
	if err != nil {
		s.log.Warn("frontier count failed while idle", "error", err)
	} else if count > p.TotalURLs {
		s.log.Info("frontier grew, rescanning",
			"total_urls", count,
			"previous", p.TotalURLs)

		p.CurrentPage = 1
		p.TotalURLs = count

		return true
	}

	if err := s.progress.Commit(*p); err != nil {
		s.log.Error("failed to commit progress while idle", "error", err)
	}

	s.log.Info("frontier exhausted, idling", "poll", s.cfg.IdlePoll.String())

	select {
	case <-ctx.Done():
		return false
	case <-s.drainCh:
		return false
	case <-time.After(s.cfg.IdlePoll):
		return true
	}
}

// batchState accumulates per-batch results across workers.
type batchState struct {
	mu        sync.Mutex
	succeeded int
	failed    int
	fatal     error
}

func (b *batchState) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.succeeded++
}

func (b *batchState) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failed++
}

func (b *batchState) recordFatal(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fatal == nil {
		b.fatal = err
	}
}

func (b *batchState) fatalErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.fatal
}

// runBatch processes one batch under a session. completed is true when
// every URL in the batch was handed to a worker and accounted for.
func (s *Scheduler) runBatch(ctx context.Context, p *domain.Progress, batch []string) (bool, error) {
	session, err := s.store.BeginSession(ctx, len(batch), s.cfg.SessionConfig)
	if err != nil {
		return false, fmt.Errorf("begin session: %w", err)
	}

	p.ActiveSessionID = session.ID

	s.log.Info("batch starting",
		"page", p.CurrentPage,
		"urls", len(batch),
		"session", session.ID,
		"database", session.TargetDB)

	batchCtx, cancel := context.WithTimeout(ctx, batchDeadline(len(batch)))
	defer cancel()

	// A drain request lets in-flight URLs finish within the grace period.
	drainTimer := make(chan struct{})
	go func() {
		select {
		case <-batchCtx.Done():
		case <-s.drainCh:
			select {
			case <-time.After(DrainGrace):
				cancel()
			case <-batchCtx.Done():
			}
		}

		close(drainTimer)
	}()

	state := &batchState{}
	jobs := make(chan string)

	var wg sync.WaitGroup

	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for url := range jobs {
				s.processURL(batchCtx, session, url, state)

				if state.fatalErr() != nil {
					cancel()
					return
				}
			}
		}()
	}

	fed := 0

feed:
	for _, url := range batch {
		select {
		case jobs <- url:
			fed++
		case <-s.drainCh:
			break feed
		case <-batchCtx.Done():
			break feed
		}
	}

	close(jobs)
	wg.Wait()
	cancel()
	<-drainTimer

	p.Succeeded += state.succeeded
	p.Failed += state.failed
	p.Processed += state.succeeded + state.failed

	if fatal := state.fatalErr(); fatal != nil {
		if endErr := s.store.EndSession(ctx, session, domain.SessionStatusFailed); endErr != nil {
			s.log.Error("failed to end session", "session", session.ID, "error", endErr)
		}

		p.ActiveSessionID = ""

		return false, fatal
	}

	status := domain.SessionStatusCompleted
	completed := fed == len(batch) && state.succeeded+state.failed == fed

	if !completed {
		status = domain.SessionStatusFailed
	}

	if err := s.store.EndSession(ctx, session, status); err != nil {
		s.log.Error("failed to end session", "session", session.ID, "error", err)
	}

	p.ActiveSessionID = ""

	s.log.Info("batch finished",
		"page", p.CurrentPage,
		"succeeded", state.succeeded,
		"failed", state.failed,
		"completed", completed)

	return completed, nil
}

// processURL runs one URL through the fetch pipeline and records the
// outcome. Every URL leaves a trace: a page row or a crawl_errors row.
func (s *Scheduler) processURL(ctx context.Context, session *domain.Session, url string, state *batchState) {
	crawled, err := s.store.AlreadyCrawled(ctx, url, s.cfg.RecrawlWindow)
	if err != nil {
		s.handleStoreError(ctx, state, err, "recency check", url)
		return
	}

	if crawled {
		// Recently crawled URLs are satisfied without a fetch.
		state.recordSuccess()
		s.metrics.RecordPage(true, 0)

		return
	}

	result := s.fetcher.Fetch(ctx, url)

	if !result.OK() {
		// A failure caused by drain, shutdown, or the batch deadline is
		// not the URL's fault; it reruns with the uncommitted batch.
		if ctx.Err() != nil {
			return
		}

		s.recordCrawlError(ctx, session, url, result, state)

		return
	}

	page, links := s.buildPage(session, result)

	if err := s.store.WritePage(ctx, session, page, links); err != nil {
		s.handleStoreError(ctx, state, err, "write page", url)
		return
	}

	state.recordSuccess()
	s.metrics.RecordPage(true, len(links))
}

// buildPage converts a fetch result into storage rows. Non-HTML responses
// keep their fetch metadata with empty content.
func (s *Scheduler) buildPage(session *domain.Session, result *fetcher.Result) (*domain.Page, []domain.Link) {
	now := time.Now().UTC()

	page := &domain.Page{
		URL:            result.FinalURL,
		HTMLSize:       len(result.Body),
		HTTPStatus:     result.StatusCode,
		ResponseTimeMs: result.ResponseTime.Milliseconds(),
		RedirectCount:  len(result.RedirectChain),
		CrawledAt:      now,
		SessionID:      session.ID,
	}

	extracted, extractedLinks, err := extractor.Extract(result.FinalURL, result.Body, result.ContentType)
	if err != nil {
		if !errors.Is(err, extractor.ErrNotHTML) {
			s.log.Warn("extraction failed", "url", result.FinalURL, "error", err)
		}

		return page, nil
	}

	if extracted.Title != "" {
		page.Title = &extracted.Title
	}

	if extracted.MetaDescription != "" {
		page.MetaDescription = &extracted.MetaDescription
	}

	if extracted.Language != "" {
		page.Language = &extracted.Language
	}

	page.Text = extracted.Text
	page.WordCount = extracted.WordCount
	page.ContentHash = extracted.ContentHash
	page.InternalLinks = extracted.InternalLinks
	page.ExternalLinks = extracted.ExternalLinks

	links := make([]domain.Link, 0, len(extractedLinks))

	for i := range extractedLinks {
		el := &extractedLinks[i]

		link := domain.Link{
			SourceURL:    result.FinalURL,
			TargetURL:    el.TargetURL,
			IsNofollow:   el.IsNofollow,
			DiscoveredAt: now,
			SessionID:    session.ID,
		}

		if el.AnchorText != "" {
			anchor := el.AnchorText
			link.AnchorText = &anchor
		}

		if el.Context != "" {
			linkCtx := el.Context
			link.Context = &linkCtx
		}

		links = append(links, link)
	}

	return page, links
}

// recordCrawlError persists a failed fetch.
func (s *Scheduler) recordCrawlError(
	ctx context.Context,
	session *domain.Session,
	url string,
	result *fetcher.Result,
	state *batchState,
) {
	var detail *string

	if result.Err != nil {
		msg := result.Err.Error()
		detail = &msg
	} else if result.StatusCode != 0 {
		msg := fmt.Sprintf("status %d", result.StatusCode)
		detail = &msg
	}

	crawlErr := &domain.CrawlError{
		URL:        url,
		Kind:       string(result.Kind),
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
		SessionID:  session.ID,
	}

	if err := s.store.RecordError(ctx, session, crawlErr); err != nil {
		s.handleStoreError(ctx, state, err, "record error", url)
		return
	}

	state.recordFailure()
	s.metrics.RecordPage(false, 0)

	s.log.Debug("url failed",
		"url", url,
		"kind", string(result.Kind),
		"status", result.StatusCode)
}

// handleStoreError decides whether a store error kills the batch. Capacity
// exhaustion and persistent store failures are fatal; a context ended by
// drain or the batch deadline just drops the URL back to the next run.
func (s *Scheduler) handleStoreError(ctx context.Context, state *batchState, err error, op, url string) {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return
	}

	state.recordFatal(fmt.Errorf("%s for %s: %w", op, url, err))
}
