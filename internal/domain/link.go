package domain

import "time"

// Link represents a discovered directed edge in the link graph.
// (source_url, target_url, session_id) is unique; the source is always the
// final post-redirect URL of the page the link was extracted from.
type Link struct {
	ID           int64     `db:"id"            json:"id"`
	SourceURL    string    `db:"source_url"    json:"source_url"`
	TargetURL    string    `db:"target_url"    json:"target_url"`
	AnchorText   *string   `db:"anchor_text"   json:"anchor_text,omitempty"`
	Context      *string   `db:"context"       json:"context,omitempty"`
	IsNofollow   bool      `db:"is_nofollow"   json:"is_nofollow"`
	DiscoveredAt time.Time `db:"discovered_at" json:"discovered_at"`
	SessionID    string    `db:"session_id"    json:"session_id"`
}

// CrawlError records a per-URL fetch failure with its classification.
// Together with pages it guarantees that every frontier URL handed to the
// scheduler leaves a trace.
type CrawlError struct {
	ID         int64     `db:"id"          json:"id"`
	URL        string    `db:"url"         json:"url"`
	Kind       string    `db:"kind"        json:"kind"`
	Detail     *string   `db:"detail"      json:"detail,omitempty"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
	SessionID  string    `db:"session_id"  json:"session_id"`
}
