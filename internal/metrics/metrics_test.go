package metrics_test

import (
	"sync"
	"testing"

	"github.com/TheBoringRats/ratcrowler/internal/metrics"
)

func TestMetrics_RecordPage(t *testing.T) {
	t.Parallel()

	m := metrics.New()

	m.RecordPage(true, 12)
	m.RecordPage(true, 3)
	m.RecordPage(false, 0)

	s := m.Snapshot()

	if s.PagesCrawled != 2 || s.PagesFailed != 1 {
		t.Errorf("pages = %d/%d, want 2/1", s.PagesCrawled, s.PagesFailed)
	}

	if s.LinksDiscovered != 15 {
		t.Errorf("links = %d, want 15", s.LinksDiscovered)
	}

	if s.SuccessRate < 0.66 || s.SuccessRate > 0.67 {
		t.Errorf("success rate = %f, want ~0.667", s.SuccessRate)
	}

	if s.LastPageTime.IsZero() {
		t.Error("last page time not stamped")
	}

	if s.PagesPerMinute <= 0 || s.PagesPerDay <= 0 {
		t.Errorf("rates = %f/min %f/day, want both positive", s.PagesPerMinute, s.PagesPerDay)
	}

	// Both rates extrapolate the same counter over the same uptime.
	if ratio := s.PagesPerDay / s.PagesPerMinute; ratio < 1439 || ratio > 1441 {
		t.Errorf("per-day/per-minute ratio = %f, want ~1440", ratio)
	}
}

func TestMetrics_EmptySnapshot(t *testing.T) {
	t.Parallel()

	s := metrics.New().Snapshot()

	if s.SuccessRate != 0 {
		t.Errorf("success rate with no pages = %f, want 0", s.SuccessRate)
	}
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	t.Parallel()

	m := metrics.New()

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				m.RecordPage(true, 1)
			}
		}()
	}

	wg.Wait()

	if s := m.Snapshot(); s.PagesCrawled != 1000 {
		t.Errorf("pages crawled = %d, want 1000", s.PagesCrawled)
	}
}
