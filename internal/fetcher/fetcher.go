// Package fetcher downloads pages politely: per-host and global concurrency
// caps, per-host delays, robots.txt enforcement, bounded redirects, and a
// retry schedule for transient failures.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/TheBoringRats/ratcrowler/internal/frontier"
	"github.com/TheBoringRats/ratcrowler/internal/logger"
)

// Fetch limits and retry schedule.
const (
	MaxRedirects = 5
	MaxBodySize  = 5 << 20

	maxRetryAfter = 30 * time.Second
)

// retryDelays is the backoff schedule for timeout/DNS/5xx retries.
var retryDelays = [...]time.Duration{time.Second, 3 * time.Second, 9 * time.Second}

// RobotsChecker answers robots.txt questions for a URL.
type RobotsChecker interface {
	Check(ctx context.Context, pageURL string) (allowed bool, delay time.Duration, err error)
}

// Result is the outcome of fetching one URL. A successful result has
// Kind == "" and a non-nil Body; FinalURL is the page's identity after
// redirects.
type Result struct {
	URL           string
	FinalURL      string
	StatusCode    int
	Body          []byte
	ContentType   string
	ResponseTime  time.Duration
	RedirectChain []string
	Kind          ErrorKind
	Err           error

	retryAfter string
}

// OK reports whether the fetch produced a usable page.
func (r *Result) OK() bool {
	return r.Kind == "" && r.StatusCode >= 200 && r.StatusCode < 300
}

// Config holds fetcher settings.
type Config struct {
	UserAgent          string
	MaxConcurrency     int
	PerHostConcurrency int
	HostDelay          time.Duration
	RequestTimeout     time.Duration
	URLTimeout         time.Duration
	RetryAttempts      int
	RespectRobots      bool
}

// Fetcher downloads pages. Safe for concurrent use; the worker pool calls
// Fetch from many goroutines.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
	robots    RobotsChecker
	agents    *agentRotor
	hosts     *hostLimiter
	global    chan struct{}
	log       logger.Interface
}

// New creates a fetcher. transport may be nil to use the default.
func New(cfg Config, robots RobotsChecker, transport http.RoundTripper, log logger.Interface) *Fetcher {
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Fetcher{
		cfg:       cfg,
		transport: transport,
		robots:    robots,
		agents:    newAgentRotor(cfg.UserAgent),
		hosts:     newHostLimiter(cfg.PerHostConcurrency, cfg.HostDelay),
		global:    make(chan struct{}, cfg.MaxConcurrency),
		log:       log,
	}
}

// Fetch downloads one URL within the per-URL time budget. The result always
// comes back; failures are classified, never silent.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) *Result {
	result := &Result{URL: pageURL}

	budget, cancel := context.WithTimeout(ctx, f.cfg.URLTimeout)
	defer cancel()

	var robotsDelay time.Duration

	if f.cfg.RespectRobots {
		allowed, delay, err := f.robots.Check(budget, pageURL)
		if err != nil {
			return f.fail(result, KindCancelled, err)
		}

		if !allowed {
			return f.fail(result, KindRobotsDenied, nil)
		}

		robotsDelay = delay
	}

	host, err := frontier.ExtractHost(pageURL)
	if err != nil {
		return f.fail(result, KindDNS, err)
	}

	select {
	case f.global <- struct{}{}:
	case <-budget.Done():
		return f.fail(result, budgetKind(ctx, budget), budget.Err())
	}
	defer func() { <-f.global }()

	release, err := f.hosts.Acquire(budget, host, robotsDelay)
	if err != nil {
		return f.fail(result, budgetKind(ctx, budget), err)
	}
	defer release()

	f.attemptLoop(budget, ctx, pageURL, result)

	return result
}

// attemptLoop runs the retry schedule until success, a terminal failure, or
// an exhausted budget.
func (f *Fetcher) attemptLoop(budget, parent context.Context, pageURL string, result *Result) {
	retriesLeft := f.cfg.RetryAttempts
	rateLimitRetried := false
	attempt := 0

	for {
		attempt++

		f.attempt(budget, pageURL, result)

		if result.Kind == "" && result.StatusCode < 400 {
			return
		}

		// HTTP errors are results, not transport failures.
		if result.Kind == "" && result.StatusCode >= 400 {
			result.Kind = KindHTTPError

			if wait, ok := rateLimitWait(result); ok && !rateLimitRetried {
				rateLimitRetried = true

				if !sleepWithin(budget, wait) {
					result.Kind = budgetKind(parent, budget)
					return
				}

				*result = Result{URL: pageURL}

				continue
			}
		}

		if result.Kind == KindCancelled && parent.Err() == nil {
			// The per-URL budget expired, not the caller.
			result.Kind = KindTimeout
		}

		if !retryable(result.Kind, result.StatusCode) || retriesLeft == 0 {
			return
		}

		idx := len(retryDelays) - retriesLeft
		if idx < 0 {
			idx = 0
		} else if idx >= len(retryDelays) {
			idx = len(retryDelays) - 1
		}

		delay := retryDelays[idx]
		retriesLeft--

		f.log.Debug("retrying fetch",
			"url", pageURL,
			"attempt", attempt,
			"kind", string(result.Kind),
			"delay", delay.String())

		if !sleepWithin(budget, delay) {
			result.Kind = budgetKind(parent, budget)
			return
		}

		*result = Result{URL: pageURL}
	}
}

// attempt performs a single HTTP request with redirect tracking.
func (f *Fetcher) attempt(budget context.Context, pageURL string, result *Result) {
	reqCtx, cancel := context.WithTimeout(budget, f.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		result.Kind = KindDNS
		result.Err = err

		return
	}

	req.Header.Set("User-Agent", f.agents.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	var chain []string

	client := &http.Client{
		Transport: f.transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > MaxRedirects {
				return errTooManyRedirects
			}

			chain = append(chain, req.URL.String())

			return nil
		},
	}

	start := time.Now()

	resp, err := client.Do(req)

	result.ResponseTime = time.Since(start)
	result.RedirectChain = chain

	if err != nil {
		result.Kind = classify(err)
		result.Err = err

		return
	}
	defer resp.Body.Close()

	result.FinalURL = resp.Request.URL.String()
	result.StatusCode = resp.StatusCode
	result.ContentType = resp.Header.Get("Content-Type")
	result.retryAfter = resp.Header.Get("Retry-After")

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		result.Kind = classify(err)
		result.Err = err

		return
	}

	result.Body = body
}

func (f *Fetcher) fail(result *Result, kind ErrorKind, err error) *Result {
	result.Kind = kind
	result.Err = err

	return result
}

// budgetKind distinguishes caller cancellation from budget exhaustion.
func budgetKind(parent, budget context.Context) ErrorKind {
	if parent.Err() != nil {
		return KindCancelled
	}

	if budget.Err() != nil {
		return KindTimeout
	}

	return KindCancelled
}

// rateLimitWait returns how long to wait before the single 408/429 retry.
// Retry-After beyond the cap means the retry is skipped.
func rateLimitWait(result *Result) (time.Duration, bool) {
	if result.StatusCode != http.StatusRequestTimeout && result.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}

	wait := time.Second

	if header := result.retryAfter; header != "" {
		secs, err := strconv.Atoi(header)
		if err != nil {
			return 0, false
		}

		wait = time.Duration(secs) * time.Second
	}

	if wait > maxRetryAfter {
		return 0, false
	}

	return wait, true
}

func sleepWithin(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
