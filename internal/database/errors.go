package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/lib/pq"
)

// Sentinel errors. Callers should check with errors.Is().
var (
	// ErrNoCapacity is returned when every rotation target is at or above
	// the exclusion threshold. The active batch cannot continue.
	ErrNoCapacity = errors.New("no database with write capacity")

	// ErrSessionNotFound is returned when ending a session that does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStoreFailure marks a database error that survived the retry
	// policy: either non-transient, or transient but still failing after
	// the last attempt.
	ErrStoreFailure = errors.New("unrecoverable store failure")
)

// Transient pq error classes: connection exceptions (08), serialization
// failures (40), insufficient resources (53), operator intervention (57).
var transientPqClasses = map[string]bool{
	"08": true,
	"40": true,
	"53": true,
	"57": true,
}

// IsTransient reports whether an error is worth retrying against the same
// database. Schema and constraint violations are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		if len(code) >= 2 {
			return transientPqClasses[code[:2]]
		}
	}

	return false
}
