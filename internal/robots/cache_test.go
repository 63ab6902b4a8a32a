package robots_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TheBoringRats/ratcrowler/internal/logger"
	"github.com/TheBoringRats/ratcrowler/internal/robots"
)

const testUA = "ratcrowler/1.0"

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return server
}

func TestCache_DisallowedPath(t *testing.T) {
	t.Parallel()

	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\nCrawl-delay: 2\n"))
	})

	cache := robots.New(server.Client(), testUA, logger.NewNoop())

	allowed, delay, err := cache.Check(context.Background(), server.URL+"/private/page")
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}

	if allowed {
		t.Error("disallowed path reported as allowed")
	}

	if delay != 2*time.Second {
		t.Errorf("crawl delay = %v, want 2s", delay)
	}

	allowed, _, err = cache.Check(context.Background(), server.URL+"/public/page")
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}

	if !allowed {
		t.Error("allowed path reported as disallowed")
	}
}

func TestCache_MissingRobotsAllowsAll(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	cache := robots.New(server.Client(), testUA, logger.NewNoop())

	for i := 0; i < 3; i++ {
		allowed, _, err := cache.Check(context.Background(), server.URL+"/anything")
		if err != nil {
			t.Fatalf("Check returned error: %v", err)
		}

		if !allowed {
			t.Error("404 robots.txt should allow everything")
		}
	}

	// The 404 verdict is cached; only one request reaches the server.
	if got := requests.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

func TestCache_ServerErrorFailsOpen(t *testing.T) {
	t.Parallel()

	server := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	cache := robots.New(server.Client(), testUA, logger.NewNoop())

	allowed, _, err := cache.Check(context.Background(), server.URL+"/page")
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}

	if !allowed {
		t.Error("server error should fail open")
	}
}

func TestCache_NetworkFailureFailsOpen(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	client := server.Client()
	server.Close() // connection refused from here on

	cache := robots.New(client, testUA, logger.NewNoop())

	allowed, _, err := cache.Check(context.Background(), server.URL+"/page")
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}

	if !allowed {
		t.Error("network failure should fail open")
	}
}

func TestCache_CancelledLookupNotCached(t *testing.T) {
	t.Parallel()

	server := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
	})

	cache := robots.New(server.Client(), testUA, logger.NewNoop())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	// The cancelled lookup fails open but must not leave an allow-all
	// verdict behind.
	allowed, _, err := cache.Check(cancelled, server.URL+"/page")
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}

	if !allowed {
		t.Error("cancelled lookup should fail open")
	}

	allowed, _, err = cache.Check(context.Background(), server.URL+"/page")
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}

	if allowed {
		t.Error("disallow rule not seen; cancelled lookup poisoned the cache")
	}
}

func TestCache_SingleFetchPerOrigin(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	release := make(chan struct{})

	server := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		<-release
		_, _ = w.Write([]byte("User-agent: *\nDisallow:\n"))
	})

	cache := robots.New(server.Client(), testUA, logger.NewNoop())

	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, _, _ = cache.Check(context.Background(), server.URL+"/page")
		}()
	}

	// Give the goroutines time to pile up behind the first fetch.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := requests.Load(); got != 1 {
		t.Errorf("server saw %d robots fetches, want 1", got)
	}
}

func TestCache_SpecificAgentGroup(t *testing.T) {
	t.Parallel()

	server := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: ratcrowler\nDisallow: /blocked/\n\nUser-agent: *\nDisallow: /\n"))
	})

	cache := robots.New(server.Client(), testUA, logger.NewNoop())

	allowed, _, err := cache.Check(context.Background(), server.URL+"/open/page")
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}

	if !allowed {
		t.Error("agent-specific group should permit /open/")
	}

	allowed, _, _ = cache.Check(context.Background(), server.URL+"/blocked/page")
	if allowed {
		t.Error("agent-specific group should block /blocked/")
	}
}
