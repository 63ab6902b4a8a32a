// Package logs provides in-memory capture of recent log entries for the
// monitoring API.
package logs

import "time"

// Buffer capacity and API limits.
const (
	DefaultBufferSize = 1000
	DefaultReadLimit  = 100
	MaxReadLimit      = 1000
)

// LogEntry represents a single captured log line.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Buffer stores recent log entries.
type Buffer interface {
	Write(entry LogEntry)
	ReadLast(n int) []LogEntry
	ReadAll() []LogEntry
	Size() int
	LineCount() int
	Clear()
}
