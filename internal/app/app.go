// Package app wires configuration, storage, rotation, crawling, analysis
// and the monitoring API into one supervised process.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/TheBoringRats/ratcrowler/internal/analyzer"
	"github.com/TheBoringRats/ratcrowler/internal/api"
	"github.com/TheBoringRats/ratcrowler/internal/config"
	"github.com/TheBoringRats/ratcrowler/internal/database"
	"github.com/TheBoringRats/ratcrowler/internal/domain"
	"github.com/TheBoringRats/ratcrowler/internal/fetcher"
	"github.com/TheBoringRats/ratcrowler/internal/frontier"
	"github.com/TheBoringRats/ratcrowler/internal/logger"
	"github.com/TheBoringRats/ratcrowler/internal/logs"
	"github.com/TheBoringRats/ratcrowler/internal/metrics"
	"github.com/TheBoringRats/ratcrowler/internal/progress"
	"github.com/TheBoringRats/ratcrowler/internal/robots"
	"github.com/TheBoringRats/ratcrowler/internal/rotation"
	"github.com/TheBoringRats/ratcrowler/internal/scheduler"
)

// usageFlushInterval is how often rotation accounting is persisted so a
// restart does not lose monthly write counts.
const usageFlushInterval = 60 * time.Second

// App owns the component graph for one crawler process.
type App struct {
	cfg    *config.Config
	log    logger.Interface
	logBuf logs.Buffer

	store     *database.Store
	rotation  *rotation.Manager
	scheduler *scheduler.Scheduler
	analyzer  *analyzer.Analyzer
	server    *api.Server
	metrics   *metrics.Metrics
}

// New builds the component graph from validated configuration. Nothing
// starts running until Run.
func New(cfg *config.Config) (*App, error) {
	logBuf := logs.NewBuffer(logs.DefaultBufferSize)
	log := logger.New(cfg.Logger, logs.NewCaptureCore(logBuf, zapcore.DebugLevel))

	a := &App{
		cfg:     cfg,
		log:     log,
		logBuf:  logBuf,
		metrics: metrics.New(),
	}

	if err := a.buildStore(); err != nil {
		return nil, err
	}

	a.buildCrawl()

	return a, nil
}

// buildStore connects every database target and assembles rotation and the
// store around them.
func (a *App) buildStore() error {
	targets := make([]*database.Target, 0, len(a.cfg.Databases))
	rotConfigs := make([]rotation.TargetConfig, 0, len(a.cfg.Databases))

	for i := range a.cfg.Databases {
		dbCfg := &a.cfg.Databases[i]

		db, err := database.Connect(dbCfg.DSN)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", dbCfg.Name, err)
		}

		targets = append(targets, database.NewTarget(dbCfg.Name, db))

		rotConfigs = append(rotConfigs, rotation.TargetConfig{
			Name:              dbCfg.Name,
			URL:               dbCfg.DSN,
			MonthlyWriteLimit: dbCfg.MonthlyWriteLimit,
			StorageQuotaBytes: dbCfg.StorageQuotaBytes(),
		})
	}

	// The manager routes the store's writes and the store backs the
	// manager's probes; the prober binding breaks the construction cycle.
	prober := &storeProber{}
	a.rotation = rotation.NewManager(rotConfigs, prober, a.log)

	store, err := database.NewStore(targets, a.rotation, a.log)
	if err != nil {
		return err
	}

	prober.store = store
	a.store = store

	return nil
}

// buildCrawl assembles the fetcher, scheduler, analyzer and API server.
func (a *App) buildCrawl() {
	crawl := &a.cfg.Crawler

	robotsCache := robots.New(
		&http.Client{Timeout: crawl.RequestTimeout},
		crawl.UserAgent,
		a.log,
	)

	f := fetcher.New(fetcher.Config{
		UserAgent:          crawl.UserAgent,
		MaxConcurrency:     crawl.MaxConcurrency,
		PerHostConcurrency: crawl.PerHostConcurrency,
		HostDelay:          crawl.HostDelay,
		RequestTimeout:     crawl.RequestTimeout,
		URLTimeout:         crawl.URLTimeout,
		RetryAttempts:      crawl.RetryAttempts,
		RespectRobots:      crawl.RespectRobots,
	}, robotsCache, nil, a.log)

	tracker := progress.NewTracker(a.cfg.Progress.Path, a.log)

	a.scheduler = scheduler.New(scheduler.Config{
		BatchSize:     crawl.BatchSize,
		Workers:       crawl.MaxConcurrency,
		RecrawlWindow: time.Duration(crawl.RecrawlWindowDays) * 24 * time.Hour,
		SessionConfig: sessionConfig(crawl),
	}, a.store, f, tracker, a.metrics, a.log)

	a.analyzer = analyzer.New(a.store, a.log)

	a.server = api.NewServer(api.Params{
		Address:  a.cfg.Server.Address,
		Logger:   a.log,
		Progress: tracker,
		Usage:    a.rotation,
		Metrics:  a.metrics,
		LogBuf:   a.logBuf,
		Store:    a.store,
	})
}

// Run starts everything and blocks until the crawl finishes or is shut
// down. The first SIGINT or SIGTERM drains gracefully; a second one cancels
// outright after the progress file is flushed by the scheduler's exit path.
func (a *App) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	defer a.store.Close() //nolint:errcheck // close on the way out

	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate databases: %w", err)
	}

	a.restoreUsage(ctx)
	a.seedFrontier(ctx)

	if totals, err := a.store.CountTotals(ctx); err != nil {
		a.log.Warn("failed to count stored totals", "error", err)
	} else {
		a.log.Info("store contents", "pages", totals.Pages, "links", totals.Links)
	}

	go a.rotation.Run(ctx)
	go a.flushUsageLoop(ctx)

	if err := a.server.Start(); err != nil {
		return err
	}
	defer a.stopServer()

	stopAnalyzer, err := a.startAnalyzer(ctx)
	if err != nil {
		return err
	}
	defer stopAnalyzer()

	stopSignals := a.handleSignals(cancel)
	defer stopSignals()

	a.log.Info("crawler starting",
		"batch_size", a.cfg.Crawler.BatchSize,
		"workers", a.cfg.Crawler.MaxConcurrency,
		"databases", len(a.cfg.Databases),
	)

	runErr := a.scheduler.Run(ctx)

	a.flushUsage(context.Background())

	if runErr != nil {
		return fmt.Errorf("scheduler stopped: %w", runErr)
	}

	a.log.Info("crawler stopped cleanly")

	return nil
}

// restoreUsage seeds rotation counters from persisted accounting. A missing
// or unreadable table is not fatal; counters restart from zero.
func (a *App) restoreUsage(ctx context.Context) {
	usage, err := a.store.LoadUsage(ctx)
	if err != nil {
		a.log.Warn("failed to restore usage accounting", "error", err)

		return
	}

	a.rotation.Restore(usage)
}

// seedFrontier pushes configured seed URLs into the frontier. Failures are
// logged, not fatal; an existing frontier keeps the crawl alive.
func (a *App) seedFrontier(ctx context.Context) {
	if len(a.cfg.Crawler.SeedURLs) == 0 {
		return
	}

	seeds := make([]string, 0, len(a.cfg.Crawler.SeedURLs))

	for _, raw := range a.cfg.Crawler.SeedURLs {
		normalized, err := frontier.NormalizeURL(raw)
		if err != nil {
			a.log.Warn("skipping invalid seed url", "url", raw, "error", err)

			continue
		}

		seeds = append(seeds, normalized)
	}

	if err := a.store.SeedFrontier(ctx, seeds); err != nil {
		a.log.Warn("failed to seed frontier", "error", err)
	}
}

// startAnalyzer schedules periodic analysis passes when enabled.
func (a *App) startAnalyzer(ctx context.Context) (stop func(), err error) {
	if !a.cfg.Analyzer.Enabled {
		return func() {}, nil
	}

	spec := a.cfg.Analyzer.Schedule
	if spec == "" {
		spec = config.DefaultAnalyzerSchedule
	}

	stop, err = a.analyzer.Schedule(ctx, spec)
	if err != nil {
		return nil, err
	}

	return stop, nil
}

// handleSignals installs graceful shutdown: first signal drains, second
// cancels immediately.
func (a *App) handleSignals(cancel context.CancelFunc) (stop func()) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			a.log.Info("shutdown signal received, draining", "signal", sig.String())
			a.scheduler.Drain()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			a.log.Warn("second signal received, cancelling", "signal", sig.String())
			cancel()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// flushUsageLoop persists rotation accounting periodically.
func (a *App) flushUsageLoop(ctx context.Context) {
	ticker := time.NewTicker(usageFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.flushUsage(ctx)
		}
	}
}

func (a *App) flushUsage(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.store.FlushUsage(flushCtx, a.rotation.Snapshot()); err != nil {
		a.log.Warn("failed to flush usage accounting", "error", err)
	}
}

func (a *App) stopServer() {
	if err := a.server.Stop(context.Background()); err != nil {
		a.log.Warn("monitoring server shutdown failed", "error", err)
	}
}

// sessionConfig captures the crawl settings snapshot stored on each session.
func sessionConfig(crawl *config.CrawlerConfig) domain.JSONBMap {
	return domain.JSONBMap{
		"batch_size":           crawl.BatchSize,
		"max_concurrency":      crawl.MaxConcurrency,
		"per_host_concurrency": crawl.PerHostConcurrency,
		"host_delay_ms":        crawl.HostDelay.Milliseconds(),
		"request_timeout_ms":   crawl.RequestTimeout.Milliseconds(),
		"url_timeout_ms":       crawl.URLTimeout.Milliseconds(),
		"retry_attempts":       crawl.RetryAttempts,
		"recrawl_window_days":  crawl.RecrawlWindowDays,
		"user_agent":           crawl.UserAgent,
		"respect_robots":       crawl.RespectRobots,
	}
}

// storeProber delegates health probes to the store once it exists. The
// rotation manager never probes before Run, so the late binding is safe.
type storeProber struct {
	store *database.Store
}

func (p *storeProber) Ping(ctx context.Context, name string) error {
	return p.store.Ping(ctx, name)
}

func (p *storeProber) SizeBytes(ctx context.Context, name string) (int64, error) {
	return p.store.SizeBytes(ctx, name)
}
