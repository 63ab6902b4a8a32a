package domain

import "time"

// Page represents a crawled resource. At most one Page row exists per
// (url, session_id). Pages sharing a content hash across distinct URLs are
// duplicates; both rows are kept, and the content_hash index lets duplicate
// sets be queried without a table scan.
type Page struct {
	ID              int64     `db:"id"               json:"id"`
	URL             string    `db:"url"              json:"url"`
	Title           *string   `db:"title"            json:"title,omitempty"`
	MetaDescription *string   `db:"meta_description" json:"meta_description,omitempty"`
	Text            string    `db:"text"             json:"-"`
	Language        *string   `db:"language"         json:"language,omitempty"`
	HTMLSize        int       `db:"html_size"        json:"html_size"`
	WordCount       int       `db:"word_count"       json:"word_count"`
	InternalLinks   int       `db:"internal_links"   json:"internal_links"`
	ExternalLinks   int       `db:"external_links"   json:"external_links"`
	HTTPStatus      int       `db:"http_status"      json:"http_status"`
	ResponseTimeMs  int64     `db:"response_time_ms" json:"response_time_ms"`
	RedirectCount   int       `db:"redirect_count"   json:"redirect_count"`
	ContentHash     string    `db:"content_hash"     json:"content_hash"`
	CrawledAt       time.Time `db:"crawled_at"       json:"crawled_at"`
	SessionID       string    `db:"session_id"       json:"session_id"`
}
