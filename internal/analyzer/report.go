package analyzer

import (
	"context"
	"fmt"
	"sort"

	"github.com/TheBoringRats/ratcrowler/internal/domain"
)

// topEntries caps the ranked lists in a backlink report.
const topEntries = 10

// BacklinkReport summarizes the inbound link profile of one target URL.
type BacklinkReport struct {
	Target           string       `json:"target"`
	TotalBacklinks   int          `json:"total_backlinks"`
	FollowLinks      int          `json:"follow_links"`
	NofollowLinks    int          `json:"nofollow_links"`
	SpamLinks        int          `json:"spam_links"`
	ReferringDomains int          `json:"referring_domains"`
	TopAnchors       []CountEntry `json:"top_anchors"`
	TopDomains       []CountEntry `json:"top_domains"`
}

// CountEntry is one ranked value/count pair in a report.
type CountEntry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// BacklinkReportFor scans stored links and aggregates everything pointing
// at target. Spam-scored links are counted separately but excluded from
// the anchor and domain rankings.
func BacklinkReportFor(ctx context.Context, store LinkSource, target string) (*BacklinkReport, error) {
	report := &BacklinkReport{Target: target}

	outbound, err := outboundCounts(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("failed to build backlink report: %w", err)
	}

	anchors := make(map[string]int)
	domains := make(map[string]int)

	err = store.IterLinks(ctx, func(link *domain.Link) error {
		if link.TargetURL != target {
			return nil
		}

		report.TotalBacklinks++

		if spamScore(link, outbound[link.SourceURL]) >= SpamThreshold {
			report.SpamLinks++

			return nil
		}

		if link.IsNofollow {
			report.NofollowLinks++
		} else {
			report.FollowLinks++
		}

		if link.AnchorText != nil && *link.AnchorText != "" {
			anchors[*link.AnchorText]++
		}

		if src := domainOf(link.SourceURL); src != "" {
			domains[src]++
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build backlink report: %w", err)
	}

	report.ReferringDomains = len(domains)
	report.TopAnchors = topCounts(anchors)
	report.TopDomains = topCounts(domains)

	return report, nil
}

// topCounts ranks a counter map, ties broken by value for stable output.
func topCounts(counts map[string]int) []CountEntry {
	entries := make([]CountEntry, 0, len(counts))
	for v, c := range counts {
		entries = append(entries, CountEntry{Value: v, Count: c})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}

		return entries[i].Value < entries[j].Value
	})

	if len(entries) > topEntries {
		entries = entries[:topEntries]
	}

	return entries
}
