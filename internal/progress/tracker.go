// Package progress persists crawl position durably so a restarted process
// resumes at the batch it was working on.
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/TheBoringRats/ratcrowler/internal/domain"
	"github.com/TheBoringRats/ratcrowler/internal/logger"
)

// Tracker reads and writes the progress file. Commits go through a
// temp-file rename so a crash mid-write never leaves a torn record.
type Tracker struct {
	path string
	log  logger.Interface

	mu      sync.Mutex
	current domain.Progress
}

// NewTracker creates a tracker backed by the file at path.
func NewTracker(path string, log logger.Interface) *Tracker {
	return &Tracker{path: path, log: log}
}

// Load reads the progress file. A missing or malformed file yields a fresh
// zero-valued record; malformed content is logged, never fatal.
func (t *Tracker) Load(batchSize int) (domain.Progress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		t.current = domain.NewProgress(batchSize)
		return t.current, nil
	}

	if err != nil {
		return domain.Progress{}, fmt.Errorf("failed to read progress file: %w", err)
	}

	var p domain.Progress
	if unmarshalErr := json.Unmarshal(data, &p); unmarshalErr != nil {
		t.log.Warn("progress file is malformed, starting fresh",
			"path", t.path,
			"error", unmarshalErr)

		t.current = domain.NewProgress(batchSize)

		return t.current, nil
	}

	if p.CurrentPage < 1 {
		p.CurrentPage = 1
	}

	if p.BatchSize <= 0 {
		p.BatchSize = batchSize
	}

	t.current = p

	return p, nil
}

// Commit durably writes the record. The in-memory copy is updated only
// after the rename succeeds.
func (t *Tracker) Commit(p domain.Progress) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	dir := filepath.Dir(t.path)

	tmp, err := os.CreateTemp(dir, ".progress-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp progress file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("failed to write progress: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("failed to sync progress: %w", err)
	}

	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp progress file: %w", err)
	}

	if err = os.Rename(tmpName, t.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace progress file: %w", err)
	}

	t.current = p

	return nil
}

// Current returns the last loaded or committed record.
func (t *Tracker) Current() domain.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.current
}

// Reset removes the progress file. A missing file is not an error.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove progress file: %w", err)
	}

	t.current = domain.Progress{}

	return nil
}
