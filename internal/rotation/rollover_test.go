package rotation

import (
	"testing"
	"time"

	"github.com/TheBoringRats/ratcrowler/internal/domain"
	"github.com/TheBoringRats/ratcrowler/internal/logger"
)

func TestManager_MonthlyRollover(t *testing.T) {
	t.Parallel()

	m := NewManager([]TargetConfig{
		{Name: "alpha", MonthlyWriteLimit: 1000, StorageQuotaBytes: 1 << 30},
	}, nil, logger.NewNoop())

	clock := time.Date(2026, time.August, 31, 23, 59, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	m.month = monthOf(clock)

	m.RecordWrite("alpha", 900)

	if _, ok := m.ChooseWriteTarget(); ok {
		t.Fatal("target eligible at 90% of quota")
	}

	// First write of the new UTC calendar month resets the counter.
	clock = time.Date(2026, time.September, 1, 0, 1, 0, 0, time.UTC)

	m.RecordWrite("alpha", 10)

	snapshot := m.Snapshot()
	if snapshot[0].WritesThisMonth != 10 {
		t.Errorf("WritesThisMonth after rollover = %d, want 10", snapshot[0].WritesThisMonth)
	}

	if snapshot[0].Status != domain.DatabaseStatusHealthy {
		t.Errorf("status after rollover = %q, want healthy", snapshot[0].Status)
	}

	if name, ok := m.ChooseWriteTarget(); !ok || name != "alpha" {
		t.Errorf("ChooseWriteTarget after rollover = %q, %v", name, ok)
	}
}

func TestManager_RolloverIgnoresLocalTimezone(t *testing.T) {
	t.Parallel()

	m := NewManager([]TargetConfig{
		{Name: "alpha", MonthlyWriteLimit: 1000, StorageQuotaBytes: 1 << 30},
	}, nil, logger.NewNoop())

	// 2026-08-31 20:00 in UTC-5 is still August in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	clock := time.Date(2026, time.August, 31, 20, 0, 0, 0, loc)
	m.now = func() time.Time { return clock }
	m.month = monthOf(clock)

	m.RecordWrite("alpha", 100)

	// Four hours later it is September 1 locally but not yet in UTC... the
	// other way around: 2026-09-01 01:00 UTC-5 is 06:00 UTC September 1.
	clock = time.Date(2026, time.September, 1, 1, 0, 0, 0, loc)
	m.RecordWrite("alpha", 50)

	if got := m.Snapshot()[0].WritesThisMonth; got != 50 {
		t.Errorf("WritesThisMonth = %d, want 50 (reset at UTC month boundary)", got)
	}
}
