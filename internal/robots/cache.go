// Package robots caches robots.txt verdicts per origin and answers allow
// and crawl-delay questions for the fetcher.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"

	"github.com/TheBoringRats/ratcrowler/internal/frontier"
	"github.com/TheBoringRats/ratcrowler/internal/logger"
)

// Cache TTLs. A missing robots.txt is remembered briefly so a site that
// later adds one is respected within the hour; an unreachable origin fails
// open for a few minutes rather than blocking the crawl.
const (
	PositiveTTL = 24 * time.Hour
	NegativeTTL = time.Hour
	FailureTTL  = 5 * time.Minute

	fetchTimeout = 10 * time.Second
	maxRobotsLen = 512 * 1024
)

// entry is one cached verdict for an origin. A nil group allows everything.
type entry struct {
	group *robotstxt.Group
	delay time.Duration
}

// Cache resolves robots.txt rules with per-origin caching. At most one
// fetch per origin is in flight at a time; concurrent callers for the same
// origin wait for it.
type Cache struct {
	client    *http.Client
	userAgent string
	cache     *gocache.Cache
	log       logger.Interface

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

// New creates a robots cache. The user agent is used both for the fetch
// request and for group matching.
func New(client *http.Client, userAgent string, log logger.Interface) *Cache {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}

	return &Cache{
		client:    client,
		userAgent: userAgent,
		cache:     gocache.New(PositiveTTL, 10*time.Minute),
		log:       log,
		inflight:  make(map[string]chan struct{}),
	}
}

// Check reports whether the URL may be fetched and the origin's crawl
// delay (zero when none is declared). Lookup failures fail open.
func (c *Cache) Check(ctx context.Context, pageURL string) (bool, time.Duration, error) {
	origin, err := frontier.Origin(pageURL)
	if err != nil {
		return false, 0, fmt.Errorf("failed to derive origin: %w", err)
	}

	e, err := c.lookup(ctx, origin)
	if err != nil {
		return false, 0, err
	}

	if e.group == nil {
		return true, e.delay, nil
	}

	path := pathOf(pageURL)

	return e.group.Test(path), e.delay, nil
}

// lookup returns the cached entry for origin, fetching robots.txt once when
// absent. Concurrent lookups for the same origin share one fetch.
func (c *Cache) lookup(ctx context.Context, origin string) (*entry, error) {
	for {
		if cached, ok := c.cache.Get(origin); ok {
			return cached.(*entry), nil
		}

		c.mu.Lock()

		if done, waiting := c.inflight[origin]; waiting {
			c.mu.Unlock()

			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		done := make(chan struct{})
		c.inflight[origin] = done
		c.mu.Unlock()

		e := c.fetch(ctx, origin)

		c.mu.Lock()
		delete(c.inflight, origin)
		close(done)
		c.mu.Unlock()

		return e, nil
	}
}

// fetch retrieves and parses robots.txt for an origin, caching the result
// with a TTL that reflects how it went.
func (c *Cache) fetch(ctx context.Context, origin string) *entry {
	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return c.store(origin, allowAll(), FailureTTL)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		// A caller-cancelled lookup says nothing about the origin; leave
		// the cache alone so the next lookup fetches for real.
		if ctx.Err() != nil {
			return allowAll()
		}

		c.log.Warn("robots.txt fetch failed, allowing temporarily",
			"origin", origin,
			"error", err)

		return c.store(origin, allowAll(), FailureTTL)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxRobotsLen))
		if readErr != nil {
			if ctx.Err() != nil {
				return allowAll()
			}

			return c.store(origin, allowAll(), FailureTTL)
		}

		data, parseErr := robotstxt.FromBytes(body)
		if parseErr != nil {
			// Unparseable robots.txt is treated as absent.
			return c.store(origin, allowAll(), NegativeTTL)
		}

		group := data.FindGroup(c.userAgent)

		return c.store(origin, &entry{group: group, delay: group.CrawlDelay}, PositiveTTL)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// No robots.txt means no restrictions.
		return c.store(origin, allowAll(), NegativeTTL)
	default:
		c.log.Warn("robots.txt fetch returned server error, allowing temporarily",
			"origin", origin,
			"status", resp.StatusCode)

		return c.store(origin, allowAll(), FailureTTL)
	}
}

func (c *Cache) store(origin string, e *entry, ttl time.Duration) *entry {
	c.cache.Set(origin, e, ttl)
	return e
}

func allowAll() *entry {
	return &entry{}
}

// pathOf returns the path plus query of a URL for group testing.
func pathOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "/"
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return path
}
