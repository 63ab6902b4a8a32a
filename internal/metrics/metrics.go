// Package metrics provides crawl metrics collection for the monitoring API.
package metrics

import (
	"sync"
	"time"
)

// Metrics holds cumulative crawl counters for the current process.
type Metrics struct {
	mu sync.Mutex

	startTime        time.Time
	pagesCrawled     int64
	pagesFailed      int64
	linksDiscovered  int64
	batchesCompleted int64
	lastPageTime     time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Uptime           time.Duration `json:"-"`
	UptimeSeconds    float64       `json:"uptime_seconds"`
	PagesCrawled     int64         `json:"pages_crawled"`
	PagesFailed      int64         `json:"pages_failed"`
	LinksDiscovered  int64         `json:"links_discovered"`
	BatchesCompleted int64         `json:"batches_completed"`
	SuccessRate      float64       `json:"success_rate"`
	PagesPerMinute   float64       `json:"pages_per_minute"`
	PagesPerDay      float64       `json:"pages_per_day"`
	LastPageTime     time.Time     `json:"last_page_time"`
}

// New creates a Metrics instance anchored at now.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordPage counts one processed URL and its discovered links.
func (m *Metrics) RecordPage(success bool, links int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if success {
		m.pagesCrawled++
		m.linksDiscovered += int64(links)
		m.lastPageTime = time.Now()
	} else {
		m.pagesFailed++
	}
}

// RecordBatch counts one completed batch.
func (m *Metrics) RecordBatch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batchesCompleted++
}

// Snapshot returns a copy of the counters with derived rates.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	uptime := time.Since(m.startTime)
	total := m.pagesCrawled + m.pagesFailed

	s := Snapshot{
		Uptime:           uptime,
		UptimeSeconds:    uptime.Seconds(),
		PagesCrawled:     m.pagesCrawled,
		PagesFailed:      m.pagesFailed,
		LinksDiscovered:  m.linksDiscovered,
		BatchesCompleted: m.batchesCompleted,
		LastPageTime:     m.lastPageTime,
	}

	if total > 0 {
		s.SuccessRate = float64(m.pagesCrawled) / float64(total)
	}

	// Rates extrapolate from process uptime; a crawl younger than a day
	// still reports the pace it would sustain over one.
	if minutes := uptime.Minutes(); minutes > 0 {
		s.PagesPerMinute = float64(m.pagesCrawled) / minutes
		s.PagesPerDay = float64(m.pagesCrawled) / (uptime.Hours() / 24)
	}

	return s
}
