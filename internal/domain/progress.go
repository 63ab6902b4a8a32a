package domain

import "time"

// DefaultBatchSize is the number of frontier URLs consumed per batch.
const DefaultBatchSize = 50

// Progress is the durable scheduler checkpoint. It is the single mutable
// record owned by the scheduler; Processed always equals Succeeded + Failed.
type Progress struct {
	CurrentPage     int       `json:"current_page"`
	BatchSize       int       `json:"batch_size"`
	TotalURLs       int       `json:"total_urls"`
	Processed       int       `json:"urls_processed"`
	Succeeded       int       `json:"successful"`
	Failed          int       `json:"failed"`
	UpdatedAt       time.Time `json:"last_update"`
	ActiveSessionID string    `json:"session_id,omitempty"`
	Running         bool      `json:"is_running"`
}

// NewProgress returns a zero-initialized Progress positioned at the first
// frontier page.
func NewProgress(batchSize int) Progress {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	return Progress{CurrentPage: 1, BatchSize: batchSize}
}
