package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/TheBoringRats/ratcrowler/internal/domain"
	"github.com/TheBoringRats/ratcrowler/internal/logger"
)

// LinkSource streams stored links; reports only need this slice of the
// store.
type LinkSource interface {
	IterLinks(ctx context.Context, fn func(link *domain.Link) error) error
}

// Store is the persistence surface a full analysis pass needs.
type Store interface {
	LinkSource
	UpsertDomainScores(ctx context.Context, scores []domain.DomainScore) error
	UpsertPageRankScores(ctx context.Context, scores []domain.PageRankScore) error
}

// Analyzer periodically rebuilds the link graph from stored links and
// recomputes PageRank and domain authority scores.
type Analyzer struct {
	store Store
	log   logger.Interface

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

func New(store Store, log logger.Interface) *Analyzer {
	return &Analyzer{
		store: store,
		log:   log.WithComponent("analyzer"),
	}
}

// Run executes one full analysis pass: load links, compute PageRank,
// aggregate domain authority, and persist both score sets. Concurrent
// passes are skipped rather than queued.
func (a *Analyzer) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		a.log.Warn("analysis pass already running, skipping")

		return nil
	}
	a.running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.lastRun = time.Now().UTC()
		a.mu.Unlock()
	}()

	started := time.Now()

	outbound, err := outboundCounts(ctx, a.store)
	if err != nil {
		return fmt.Errorf("failed to count outbound links: %w", err)
	}

	g := newGraph()
	stats := make(map[string]*domainStats)

	var total, spam int

	err = a.store.IterLinks(ctx, func(link *domain.Link) error {
		total++

		if spamScore(link, outbound[link.SourceURL]) >= SpamThreshold {
			spam++

			return nil
		}

		g.addEdge(link.SourceURL, link.TargetURL, link.IsNofollow)

		targetDomain := domainOf(link.TargetURL)
		if targetDomain == "" {
			return nil
		}

		st, ok := stats[targetDomain]
		if !ok {
			st = newDomainStats()
			stats[targetDomain] = st
		}

		st.backlinks++
		if link.IsNofollow {
			st.nofollow++
		}

		if src := domainOf(link.SourceURL); src != "" {
			st.referrers[src] = struct{}{}
		}

		if link.AnchorText != nil && *link.AnchorText != "" {
			st.anchors[*link.AnchorText] = struct{}{}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load link graph: %w", err)
	}

	if g.nodes == 0 {
		a.log.Info("no links to analyze yet")

		return nil
	}

	ranks := pagerank(g)

	pageScores, maxRank := a.pageRankScores(g, ranks)
	a.accumulateReferrerRank(g, ranks, stats)
	domainScores := a.domainScores(stats, maxRank)

	if err := a.store.UpsertPageRankScores(ctx, pageScores); err != nil {
		return fmt.Errorf("failed to persist pagerank scores: %w", err)
	}

	if err := a.store.UpsertDomainScores(ctx, domainScores); err != nil {
		return fmt.Errorf("failed to persist domain scores: %w", err)
	}

	a.log.Info("analysis pass complete",
		"links", total,
		"spam_links", spam,
		"pages", len(pageScores),
		"domains", len(domainScores),
		"duration", time.Since(started).String(),
	)

	return nil
}

// LastRun reports when the previous pass finished, zero if none has.
func (a *Analyzer) LastRun() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lastRun
}

func (a *Analyzer) pageRankScores(g *graph, ranks []float64) ([]domain.PageRankScore, float64) {
	now := time.Now().UTC()
	scores := make([]domain.PageRankScore, g.nodes)

	var maxRank float64

	for i := range ranks {
		scores[i] = domain.PageRankScore{
			URL:       g.urls[i],
			Score:     ranks[i],
			UpdatedAt: now,
		}

		if ranks[i] > maxRank {
			maxRank = ranks[i]
		}
	}

	return scores, maxRank
}

// accumulateReferrerRank sums the PageRank of each link's source page into
// the target domain's stats, so well-ranked referrers count for more.
func (a *Analyzer) accumulateReferrerRank(g *graph, ranks []float64, stats map[string]*domainStats) {
	for from, edges := range g.out {
		for _, e := range edges {
			targetDomain := domainOf(g.urls[e.to])
			if st, ok := stats[targetDomain]; ok {
				st.referrerRank += ranks[from]
			}
		}
	}
}

func (a *Analyzer) domainScores(stats map[string]*domainStats, maxRank float64) []domain.DomainScore {
	raw := make(map[string]float64, len(stats))
	for dom, st := range stats {
		raw[dom] = st.rawAuthority(maxRank)
	}

	scaled := calibrate(raw)

	now := time.Now().UTC()
	scores := make([]domain.DomainScore, 0, len(stats))

	for dom, st := range stats {
		scores = append(scores, domain.DomainScore{
			Domain:           dom,
			AuthorityScore:   scaled[dom],
			BacklinkCount:    st.backlinks,
			ReferringDomains: len(st.referrers),
			UpdatedAt:        now,
		})
	}

	return scores
}

// Schedule registers the analyzer on a cron spec (e.g. "@every 6h") and
// starts the scheduler. The returned stop function waits for a running
// pass to finish.
func (a *Analyzer) Schedule(ctx context.Context, spec string) (stop func(), err error) {
	c := cron.New()

	_, err = c.AddFunc(spec, func() {
		if err := a.Run(ctx); err != nil {
			a.log.Error("scheduled analysis pass failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule analyzer: %w", err)
	}

	c.Start()
	a.log.Info("analyzer scheduled", "spec", spec)

	return func() {
		<-c.Stop().Done()
	}, nil
}
