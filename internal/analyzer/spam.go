package analyzer

import (
	"context"
	"strings"

	"github.com/TheBoringRats/ratcrowler/internal/domain"
)

// Spam scoring weights and threshold. A link at or above the threshold is
// excluded from authority inputs.
const (
	SpamThreshold = 0.8

	spamLongAnchor       = 0.2
	spamKeyword          = 0.3
	spamSuspiciousDomain = 0.4
	spamThinContext      = 0.2
	spamLinkDensity      = 0.2

	longAnchorWords = 5
	thinContextLen  = 50
	// denseSourceLinks is the outbound link count past which a source page
	// looks like a link farm rather than editorial content.
	denseSourceLinks = 100
)

// spamKeywords flag commercial link-scheme anchors.
var spamKeywords = []string{
	"buy", "cheap", "discount", "sale", "casino", "viagra", "loan",
	"free money", "click here now",
}

// spamScore rates one link in [0, ~1.3]. sourceOutbound is how many stored
// links the source page emits in total. The components are additive;
// anything past the threshold is treated as a scheme link.
func spamScore(link *domain.Link, sourceOutbound int) float64 {
	var score float64

	anchor := ""
	if link.AnchorText != nil {
		anchor = strings.ToLower(*link.AnchorText)
	}

	if len(strings.Fields(anchor)) > longAnchorWords {
		score += spamLongAnchor
	}

	for _, kw := range spamKeywords {
		if strings.Contains(anchor, kw) {
			score += spamKeyword
			break
		}
	}

	if suspiciousDomain(domainOf(link.SourceURL)) {
		score += spamSuspiciousDomain
	}

	if link.Context == nil || len(*link.Context) < thinContextLen {
		score += spamThinContext
	}

	if sourceOutbound > denseSourceLinks {
		score += spamLinkDensity
	}

	return score
}

// outboundCounts tallies stored links per source page in one streaming
// pass; the tallies feed the link density spam signal.
func outboundCounts(ctx context.Context, source LinkSource) (map[string]int, error) {
	counts := make(map[string]int)

	err := source.IterLinks(ctx, func(link *domain.Link) error {
		counts[link.SourceURL]++

		return nil
	})
	if err != nil {
		return nil, err
	}

	return counts, nil
}

// suspiciousDomain flags hosts that look machine-generated: heavy on
// digits or hyphens relative to their length.
func suspiciousDomain(host string) bool {
	if host == "" {
		return false
	}

	var digits, hyphens int

	for _, r := range host {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '-':
			hyphens++
		}
	}

	return digits > len(host)/3 || hyphens >= 3
}
