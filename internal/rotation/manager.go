// Package rotation spreads writes across database targets so no single
// database exhausts its monthly write quota or storage allowance.
package rotation

import (
	"context"
	"sync"
	"time"

	"github.com/TheBoringRats/ratcrowler/internal/domain"
	"github.com/TheBoringRats/ratcrowler/internal/logger"
)

// Health tracking constants.
const (
	// ProbeInterval is how often targets are health checked. Down targets
	// are re-probed at the same cadence.
	ProbeInterval = 60 * time.Second
	// FailuresUntilDown marks a target down after this many consecutive
	// probe failures.
	FailuresUntilDown = 3
	// SuccessesUntilRecovered brings a down target back (as warning) after
	// this many consecutive successful probes.
	SuccessesUntilRecovered = 2
)

// TargetConfig describes one rotation target's quotas.
type TargetConfig struct {
	Name              string
	URL               string
	MonthlyWriteLimit int64
	StorageQuotaBytes int64
}

// Prober verifies connectivity and measures storage for a named target.
// Implemented by the database store.
type Prober interface {
	Ping(ctx context.Context, name string) error
	SizeBytes(ctx context.Context, name string) (int64, error)
}

// target is the manager's mutable per-database state.
type target struct {
	usage     domain.DatabaseUsage
	failures  int // consecutive probe/write failures
	successes int // consecutive probe successes while down
}

// Manager tracks per-target usage and health, and picks the write target
// with the most headroom. All methods are safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	targets []*target
	byName  map[string]*target
	month   time.Time // UTC month anchor for quota counters
	prober  Prober
	log     logger.Interface
	now     func() time.Time
}

// NewManager creates a manager over the configured targets.
func NewManager(configs []TargetConfig, prober Prober, log logger.Interface) *Manager {
	m := &Manager{
		byName: make(map[string]*target, len(configs)),
		prober: prober,
		log:    log,
		now:    time.Now,
	}

	for _, cfg := range configs {
		t := &target{
			usage: domain.DatabaseUsage{
				Name:              cfg.Name,
				URL:               cfg.URL,
				MonthlyWriteLimit: cfg.MonthlyWriteLimit,
				StorageQuotaBytes: cfg.StorageQuotaBytes,
				Status:            domain.DatabaseStatusHealthy,
				LastHealthCheck:   m.now().UTC(),
			},
		}
		m.targets = append(m.targets, t)
		m.byName[cfg.Name] = t
	}

	m.month = monthOf(m.now())

	return m
}

// Restore seeds counters from persisted usage rows so monthly accounting
// survives restarts. Rows for unknown targets are ignored.
func (m *Manager) Restore(usage map[string]domain.DatabaseUsage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, row := range usage {
		t, ok := m.byName[name]
		if !ok {
			continue
		}

		t.usage.WritesThisMonth = row.WritesThisMonth
		t.usage.BytesUsed = row.BytesUsed
		m.refreshStatusLocked(t)
	}
}

// ChooseWriteTarget returns the eligible target with the lowest load ratio.
// Targets at or above the exclusion threshold and down targets are skipped.
// Returns false when nothing is eligible.
func (m *Manager) ChooseWriteTarget() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverLocked()

	var best *target

	for _, t := range m.targets {
		if t.usage.Status == domain.DatabaseStatusDown {
			continue
		}

		if t.usage.LoadRatio() >= domain.UsageExcludeRatio {
			continue
		}

		if best == nil || t.usage.LoadRatio() < best.usage.LoadRatio() {
			best = t
		}
	}

	if best == nil {
		return "", false
	}

	return best.usage.Name, true
}

// RecordWrite charges rows against the target's monthly counter.
func (m *Manager) RecordWrite(name string, rows int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byName[name]
	if !ok {
		return
	}

	m.rolloverLocked()

	t.usage.WritesThisMonth += rows
	m.refreshStatusLocked(t)
}

// RecordFailure counts a failed write or probe against the target. After
// FailuresUntilDown consecutive failures the target is marked down.
func (m *Manager) RecordFailure(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byName[name]
	if !ok {
		return
	}

	t.failures++
	t.successes = 0

	if t.failures >= FailuresUntilDown && t.usage.Status != domain.DatabaseStatusDown {
		t.usage.Status = domain.DatabaseStatusDown
		m.log.Error("database marked down",
			"database", name,
			"consecutive_failures", t.failures)
	}
}

// recordSuccess resets failure tracking and walks a down target back toward
// service.
func (m *Manager) recordSuccess(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byName[name]
	if !ok {
		return
	}

	t.failures = 0

	if t.usage.Status != domain.DatabaseStatusDown {
		return
	}

	t.successes++
	if t.successes >= SuccessesUntilRecovered {
		t.usage.Status = domain.DatabaseStatusWarning
		t.successes = 0
		m.log.Info("database recovered", "database", name)
	}
}

// Snapshot returns a copy of every target's usage in configuration order.
func (m *Manager) Snapshot() []domain.DatabaseUsage {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make([]domain.DatabaseUsage, len(m.targets))
	for i, t := range m.targets {
		snapshot[i] = t.usage
	}

	return snapshot
}

// Run probes every target on ProbeInterval until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ProbeAll(ctx)
		}
	}
}

// ProbeAll health checks every target once, updating storage usage and
// health state.
func (m *Manager) ProbeAll(ctx context.Context) {
	for _, name := range m.names() {
		m.probe(ctx, name)
	}
}

func (m *Manager) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, len(m.targets))
	for i, t := range m.targets {
		names[i] = t.usage.Name
	}

	return names
}

func (m *Manager) probe(ctx context.Context, name string) {
	if err := m.prober.Ping(ctx, name); err != nil {
		m.log.Warn("database probe failed", "database", name, "error", err)
		m.RecordFailure(name)
		m.touch(name)

		return
	}

	m.recordSuccess(name)

	size, err := m.prober.SizeBytes(ctx, name)
	if err != nil {
		m.log.Warn("database size check failed", "database", name, "error", err)
	}

	m.mu.Lock()
	if t, ok := m.byName[name]; ok {
		if err == nil {
			t.usage.BytesUsed = size
		}

		t.usage.LastHealthCheck = m.now().UTC()
		m.escalateStatusLocked(t)
	}
	m.mu.Unlock()
}

// escalateStatusLocked raises the status when usage ratios demand it, but
// never lowers it. A target that just recovered stays at warning until the
// next write recomputes its status.
func (m *Manager) escalateStatusLocked(t *target) {
	if t.usage.Status == domain.DatabaseStatusDown {
		return
	}

	ratio := t.usage.LoadRatio()

	switch {
	case ratio >= domain.UsageCriticalRatio:
		t.usage.Status = domain.DatabaseStatusCritical
	case ratio >= domain.UsageWarningRatio && t.usage.Status == domain.DatabaseStatusHealthy:
		t.usage.Status = domain.DatabaseStatusWarning
	}
}

func (m *Manager) touch(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.byName[name]; ok {
		t.usage.LastHealthCheck = m.now().UTC()
	}
}

// refreshStatusLocked recomputes threshold status from usage ratios. Down
// state is owned by failure tracking and never overwritten here.
func (m *Manager) refreshStatusLocked(t *target) {
	if t.usage.Status == domain.DatabaseStatusDown {
		return
	}

	ratio := t.usage.LoadRatio()

	switch {
	case ratio >= domain.UsageCriticalRatio:
		if t.usage.Status != domain.DatabaseStatusCritical {
			m.log.Error("database usage critical",
				"database", t.usage.Name,
				"load_ratio", ratio)
		}

		t.usage.Status = domain.DatabaseStatusCritical
	case ratio >= domain.UsageWarningRatio:
		if t.usage.Status == domain.DatabaseStatusHealthy {
			m.log.Warn("database usage high",
				"database", t.usage.Name,
				"load_ratio", ratio)
		}

		t.usage.Status = domain.DatabaseStatusWarning
	default:
		t.usage.Status = domain.DatabaseStatusHealthy
	}
}

// rolloverLocked resets monthly counters when the UTC calendar month has
// changed since the last write.
func (m *Manager) rolloverLocked() {
	current := monthOf(m.now())
	if current.Equal(m.month) {
		return
	}

	m.month = current

	for _, t := range m.targets {
		t.usage.WritesThisMonth = 0
		m.refreshStatusLocked(t)
	}

	m.log.Info("monthly write counters reset", "month", current.Format("2006-01"))
}

func monthOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
