package domain

import "time"

// DomainScore holds the computed authority profile for a domain.
// AuthorityScore is scaled into [0,100].
type DomainScore struct {
	Domain           string    `db:"domain"            json:"domain"`
	AuthorityScore   float64   `db:"authority_score"   json:"authority_score"`
	BacklinkCount    int       `db:"backlink_count"    json:"backlink_count"`
	ReferringDomains int       `db:"referring_domains" json:"referring_domains"`
	UpdatedAt        time.Time `db:"updated_at"        json:"updated_at"`
}

// PageRankScore holds the PageRank value for a URL. Scores are normalized so
// that the sum across all graph nodes equals 1.
type PageRankScore struct {
	URL       string    `db:"url"        json:"url"`
	Score     float64   `db:"score"      json:"score"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
