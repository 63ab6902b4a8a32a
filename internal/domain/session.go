// Package domain provides domain models used across the application.
package domain

import "time"

// Session status constants.
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusFailed    = "failed"
)

// Session represents one crawl batch run. Every Page and Link row is owned
// by exactly one session.
type Session struct {
	ID         string     `db:"id"          json:"id"`
	StartedAt  time.Time  `db:"started_at"  json:"started_at"`
	EndedAt    *time.Time `db:"ended_at"    json:"ended_at,omitempty"`
	Status     string     `db:"status"      json:"status"`
	SeedCount  int        `db:"seed_count"  json:"seed_count"`
	ConfigJSON JSONBMap   `db:"config_json" json:"config_json,omitempty"`
	TargetDB   string     `db:"target_db"   json:"target_db"`
}
