package extractor_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/TheBoringRats/ratcrowler/internal/extractor"
)

const sampleHTML = `<!DOCTYPE html>
<html lang="en-US">
<head>
<title>  Example   Page  </title>
<meta name="description" content="A page about examples.">
<script>var tracking = "noise";</script>
<style>body { color: red; }</style>
</head>
<body>
<nav>Home About Contact</nav>
<header>Site header</header>
<h1>Welcome</h1>
<p>Some interesting prose about the topic at hand, with a
<a href="/local/page">local link</a> in the middle of it.</p>
<p>External references include <a href="https://Other.Example:443/path#section" rel="nofollow">a nofollow one</a>
and <a href="https://another.example/doc" rel="ugc sponsored">user content</a>.</p>
<p><a href="mailto:someone@example.com">mail me</a>
<a href="javascript:void(0)">click</a>
<a href="#top">back to top</a></p>
<footer>Copyright footer text</footer>
</body>
</html>`

func extract(t *testing.T, html string) (*extractor.Page, []extractor.Link) {
	t.Helper()

	page, links, err := extractor.Extract("https://example.com/article", []byte(html), "text/html; charset=utf-8")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	return page, links
}

func TestExtract_RejectsNonHTML(t *testing.T) {
	t.Parallel()

	_, _, err := extractor.Extract("https://example.com/feed", []byte("{}"), "application/json")
	if !errors.Is(err, extractor.ErrNotHTML) {
		t.Fatalf("error = %v, want ErrNotHTML", err)
	}
}

func TestExtract_TitleAndMeta(t *testing.T) {
	t.Parallel()

	page, _ := extract(t, sampleHTML)

	if page.Title != "Example Page" {
		t.Errorf("Title = %q, want collapsed %q", page.Title, "Example Page")
	}

	if page.MetaDescription != "A page about examples." {
		t.Errorf("MetaDescription = %q", page.MetaDescription)
	}

	if page.Language != "en-US" {
		t.Errorf("Language = %q, want en-US", page.Language)
	}
}

func TestExtract_TitleFallsBackToH1(t *testing.T) {
	t.Parallel()

	page, _ := extract(t, `<html><body><h1>Heading Title</h1><p>text</p></body></html>`)

	if page.Title != "Heading Title" {
		t.Errorf("Title = %q, want h1 fallback", page.Title)
	}
}

func TestExtract_TitleTruncated(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("t", 600)
	page, _ := extract(t, "<html><head><title>"+long+"</title></head><body>x</body></html>")

	if len(page.Title) != extractor.MaxTitleLen {
		t.Errorf("Title length = %d, want %d", len(page.Title), extractor.MaxTitleLen)
	}
}

func TestExtract_TextStripsBoilerplate(t *testing.T) {
	t.Parallel()

	page, _ := extract(t, sampleHTML)

	for _, banned := range []string{"tracking", "color: red", "Home About Contact", "Site header", "Copyright footer"} {
		if strings.Contains(page.Text, banned) {
			t.Errorf("cleaned text still contains %q", banned)
		}
	}

	if !strings.Contains(page.Text, "interesting prose") {
		t.Error("cleaned text lost body prose")
	}

	if page.WordCount == 0 {
		t.Error("word count is zero")
	}
}

func TestExtract_ContentHashStable(t *testing.T) {
	t.Parallel()

	first, _ := extract(t, sampleHTML)
	second, _ := extract(t, sampleHTML)

	if first.ContentHash != second.ContentHash {
		t.Error("content hash differs between identical extractions")
	}

	if len(first.ContentHash) != 64 {
		t.Errorf("content hash length = %d, want 64 hex chars", len(first.ContentHash))
	}
}

func TestExtract_Links(t *testing.T) {
	t.Parallel()

	_, links := extract(t, sampleHTML)

	if len(links) != 3 {
		t.Fatalf("extracted %d links, want 3 (http(s) only, no fragments): %+v", len(links), links)
	}

	if links[0].TargetURL != "https://example.com/local/page" {
		t.Errorf("relative link resolved to %q", links[0].TargetURL)
	}

	// Normalization lowercases the host, strips the default port and the
	// fragment.
	if links[1].TargetURL != "https://other.example/path" {
		t.Errorf("external link normalized to %q", links[1].TargetURL)
	}

	if !links[1].IsNofollow {
		t.Error("rel=nofollow link not flagged")
	}

	if !links[2].IsNofollow {
		t.Error("rel=\"ugc sponsored\" link not flagged")
	}

	if links[0].IsNofollow {
		t.Error("plain link flagged as nofollow")
	}
}

func TestExtract_AnchorAndContext(t *testing.T) {
	t.Parallel()

	_, links := extract(t, sampleHTML)

	if links[0].AnchorText != "local link" {
		t.Errorf("anchor = %q", links[0].AnchorText)
	}

	if !strings.Contains(links[0].Context, "local link") {
		t.Errorf("context %q does not contain the anchor", links[0].Context)
	}

	if !strings.Contains(links[0].Context, "prose about the topic") {
		t.Errorf("context %q lost surrounding text", links[0].Context)
	}
}

func TestExtract_InternalExternalCounts(t *testing.T) {
	t.Parallel()

	page, _ := extract(t, sampleHTML)

	if page.InternalLinks != 1 {
		t.Errorf("InternalLinks = %d, want 1", page.InternalLinks)
	}

	if page.ExternalLinks != 2 {
		t.Errorf("ExternalLinks = %d, want 2", page.ExternalLinks)
	}
}
