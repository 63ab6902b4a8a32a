package frontier_test

import (
	"testing"

	"github.com/TheBoringRats/ratcrowler/internal/frontier"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases scheme and host",
			input: "HTTP://Example.COM/Path",
			want:  "http://example.com/Path",
		},
		{
			name:  "strips default http port",
			input: "http://example.com:80/page",
			want:  "http://example.com/page",
		},
		{
			name:  "strips default https port",
			input: "https://example.com:443/page",
			want:  "https://example.com/page",
		},
		{
			name:  "keeps non-default port",
			input: "https://example.com:8443/page",
			want:  "https://example.com:8443/page",
		},
		{
			name:  "removes fragment",
			input: "https://example.com/page#section-2",
			want:  "https://example.com/page",
		},
		{
			name:  "preserves root trailing slash",
			input: "https://example.com/",
			want:  "https://example.com/",
		},
		{
			name:  "adds root path when missing",
			input: "https://example.com",
			want:  "https://example.com/",
		},
		{
			name:  "strips non-root trailing slash",
			input: "https://example.com/a/b/",
			want:  "https://example.com/a/b",
		},
		{
			name:  "resolves dot segments",
			input: "https://example.com/a/../b/./c",
			want:  "https://example.com/b/c",
		},
		{
			name:  "preserves query parameter order",
			input: "https://example.com/search?z=1&a=2&m=3",
			want:  "https://example.com/search?z=1&a=2&m=3",
		},
		{
			name:  "normalizes percent encoding in query",
			input: "https://example.com/q?name=hello%20world",
			want:  "https://example.com/q?name=hello+world",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := frontier.NormalizeURL(tt.input)
			if err != nil {
				t.Fatalf("NormalizeURL(%q) error = %v", tt.input, err)
			}

			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestNormalizeURL_Idempotent verifies normalize(normalize(u)) == normalize(u).
func TestNormalizeURL_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"HTTP://Example.COM:80/A/../B/?z=9&a=%20x#frag",
		"https://example.com",
		"https://example.com/path/?q=hello%20world&b=2",
		"http://sub.example.com:8080/deep/path/",
		"https://example.com/?a",
	}

	for _, input := range inputs {
		once, err := frontier.NormalizeURL(input)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) error = %v", input, err)
		}

		twice, err := frontier.NormalizeURL(once)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) second pass error = %v", once, err)
		}

		if once != twice {
			t.Errorf("normalization not idempotent: %q -> %q -> %q", input, once, twice)
		}
	}
}

func TestNormalizeURL_Invalid(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"   ",
		"not-a-url",
		"ftp://example.com/file",
		"mailto:someone@example.com",
		"javascript:alert(1)",
	}

	for _, input := range inputs {
		if _, err := frontier.NormalizeURL(input); err == nil {
			t.Errorf("NormalizeURL(%q) expected error, got nil", input)
		}
	}
}

func TestExtractHost(t *testing.T) {
	t.Parallel()

	host, err := frontier.ExtractHost("https://Sub.Example.COM:8443/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if host != "sub.example.com" {
		t.Errorf("ExtractHost = %q, want %q", host, "sub.example.com")
	}
}

func TestOrigin(t *testing.T) {
	t.Parallel()

	origin, err := frontier.Origin("HTTPS://Example.com:8443/deep/page?q=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if origin != "https://example.com:8443" {
		t.Errorf("Origin = %q, want %q", origin, "https://example.com:8443")
	}
}

func TestURLHash_StableLength(t *testing.T) {
	t.Parallel()

	h1, err := frontier.URLHash("https://example.com/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h2, err := frontier.URLHash("HTTPS://EXAMPLE.COM/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h1 != h2 {
		t.Error("equivalent URLs should hash identically")
	}

	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
}
