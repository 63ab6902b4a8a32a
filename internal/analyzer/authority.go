package analyzer

import (
	"math"
	"sort"
)

// Authority calibration. Raw scores are scaled so the top percentile of
// domains lands around 95, keeping the [0,100] range meaningful across
// crawls of very different sizes.
const (
	MaxAuthority        = 100.0
	topPercentileTarget = 95.0
	topPercentile       = 0.99
)

// domainStats accumulates per-domain inputs while scanning links.
type domainStats struct {
	backlinks    int
	nofollow     int
	referrers    map[string]struct{}
	anchors      map[string]struct{}
	referrerRank float64
}

func newDomainStats() *domainStats {
	return &domainStats{
		referrers: make(map[string]struct{}),
		anchors:   make(map[string]struct{}),
	}
}

// rawAuthority combines the inputs into an uncalibrated score. More
// referring domains, better-ranked referrers, and diverse anchors raise
// it; a high nofollow share lowers it.
func (d *domainStats) rawAuthority(maxRank float64) float64 {
	if d.backlinks == 0 {
		return 0
	}

	referring := float64(len(d.referrers))
	diversity := float64(len(d.anchors)) / float64(d.backlinks)
	nofollowRatio := float64(d.nofollow) / float64(d.backlinks)

	meanRank := d.referrerRank / float64(d.backlinks)

	rankSignal := 0.0
	if maxRank > 0 {
		rankSignal = meanRank / maxRank
	}

	score := 2*math.Log1p(referring) +
		3*rankSignal +
		diversity -
		nofollowRatio

	if score < 0 {
		return 0
	}

	return score
}

// calibrate scales raw scores into [0,100] so that the top-percentile raw
// value maps to ~95.
func calibrate(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return raw
	}

	values := make([]float64, 0, len(raw))
	for _, v := range raw {
		values = append(values, v)
	}

	sort.Float64s(values)

	pivot := values[int(float64(len(values)-1)*topPercentile)]
	if pivot <= 0 {
		pivot = values[len(values)-1]
	}

	scaled := make(map[string]float64, len(raw))

	for dom, v := range raw {
		if pivot <= 0 {
			scaled[dom] = 0
			continue
		}

		s := topPercentileTarget * v / pivot
		if s > MaxAuthority {
			s = MaxAuthority
		}

		scaled[dom] = s
	}

	return scaled
}
