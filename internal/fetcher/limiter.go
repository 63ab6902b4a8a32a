package fetcher

import (
	"context"
	"sync"
	"time"
)

// hostSlot tracks politeness state for one host.
type hostSlot struct {
	sem       chan struct{}
	mu        sync.Mutex
	nextFetch time.Time
}

// hostLimiter enforces the per-host concurrency cap and minimum delay
// between request starts to the same host.
type hostLimiter struct {
	mu       sync.Mutex
	hosts    map[string]*hostSlot
	perHost  int
	minDelay time.Duration
}

func newHostLimiter(perHost int, minDelay time.Duration) *hostLimiter {
	return &hostLimiter{
		hosts:    make(map[string]*hostSlot),
		perHost:  perHost,
		minDelay: minDelay,
	}
}

func (l *hostLimiter) slot(host string) *hostSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.hosts[host]
	if !ok {
		s = &hostSlot{sem: make(chan struct{}, l.perHost)}
		l.hosts[host] = s
	}

	return s
}

// Acquire blocks until the host has a free slot and its delay has elapsed.
// delayOverride, when positive, replaces the configured minimum delay
// (robots crawl-delay). The returned release func must be called when the
// request finishes.
func (l *hostLimiter) Acquire(ctx context.Context, host string, delayOverride time.Duration) (func(), error) {
	s := l.slot(host)

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	delay := l.minDelay
	if delayOverride > 0 {
		delay = delayOverride
	}

	s.mu.Lock()
	now := time.Now()
	wait := s.nextFetch.Sub(now)

	start := now
	if wait > 0 {
		start = s.nextFetch
	}

	s.nextFetch = start.Add(delay)
	s.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			<-s.sem
			return nil, ctx.Err()
		}
	}

	return func() { <-s.sem }, nil
}
