package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/TheBoringRats/ratcrowler/internal/logger"
)

// Retry policy for transient database errors.
const (
	retryAttempts  = 3
	retryBaseDelay = 250 * time.Millisecond
)

// execRequireRows verifies that an exec affected at least one row, returning
// notFound otherwise.
func execRequireRows(result sql.Result, what string, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for %s: %w", what, err)
	}

	if rows == 0 {
		return notFound
	}

	return nil
}

// withRetry runs op up to retryAttempts times, backing off exponentially
// from retryBaseDelay, retrying only transient errors. When all attempts
// fail the last error is returned wrapped in ErrStoreFailure so callers can
// classify it without inspecting pq internals.
func withRetry(ctx context.Context, log logger.Interface, what string, op func() error) error {
	var err error

	delay := retryBaseDelay

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}

		if !IsTransient(err) || attempt == retryAttempts {
			return fmt.Errorf("%w: %w", ErrStoreFailure, err)
		}

		log.Warn("transient database error, retrying",
			"operation", what,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
	}

	return err
}
