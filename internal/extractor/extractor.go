// Package extractor turns fetched HTML into structured page data and the
// outbound links that feed the link graph.
package extractor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/TheBoringRats/ratcrowler/internal/frontier"
)

// Extraction limits.
const (
	MaxTitleLen    = 512
	MaxTextLen     = 1 << 20
	MaxAnchorLen   = 256
	ContextRadius  = 64
	maxLanguageLen = 10
)

// ErrNotHTML is returned for responses whose content type is not HTML.
// Callers should check with errors.Is().
var ErrNotHTML = errors.New("content is not HTML")

// Page is the extracted document content.
type Page struct {
	Title           string
	MetaDescription string
	Text            string
	Language        string
	WordCount       int
	ContentHash     string
	InternalLinks   int
	ExternalLinks   int
}

// Link is one outbound edge found in the document. TargetURL is normalized
// and absolute.
type Link struct {
	TargetURL  string
	AnchorText string
	Context    string
	IsNofollow bool
}

// Extract parses an HTML body fetched from finalURL. Link targets are
// resolved against finalURL, which is also the source identity the caller
// should store the links under.
func Extract(finalURL string, body []byte, contentType string) (*Page, []Link, error) {
	if !isHTML(contentType) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotHTML, contentType)
	}

	base, err := url.Parse(finalURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse final URL: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{
		Title:           extractTitle(doc),
		MetaDescription: extractMetaDescription(doc),
		Language:        extractLanguage(doc),
	}

	page.Text = extractText(doc)
	page.WordCount = len(strings.Fields(page.Text))

	hash := sha256.Sum256([]byte(page.Text))
	page.ContentHash = hex.EncodeToString(hash[:])

	links := extractLinks(doc, base)

	for _, link := range links {
		if sameHost(base, link.TargetURL) {
			page.InternalLinks++
		} else {
			page.ExternalLinks++
		}
	}

	return page, links, nil
}

// isHTML accepts text/html and application/xhtml+xml, with or without
// parameters.
func isHTML(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// extractTitle prefers <title>, falling back to the first <h1>.
func extractTitle(doc *goquery.Document) string {
	title := collapseWhitespace(doc.Find("title").First().Text())
	if title == "" {
		title = collapseWhitespace(doc.Find("h1").First().Text())
	}

	return truncate(title, MaxTitleLen)
}

func extractMetaDescription(doc *goquery.Document) string {
	desc, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	return truncate(collapseWhitespace(desc), MaxTitleLen)
}

func extractLanguage(doc *goquery.Document) string {
	lang, _ := doc.Find("html").First().Attr("lang")
	return truncate(strings.TrimSpace(lang), maxLanguageLen)
}

// extractText returns the document's visible text with boilerplate elements
// removed and whitespace collapsed, capped at MaxTextLen.
func extractText(doc *goquery.Document) string {
	cloned := doc.Find("body").Clone()
	if cloned.Length() == 0 {
		cloned = doc.Selection.Clone()
	}

	cloned.Find("script, style, nav, header, footer, noscript, iframe").Remove()

	return truncate(collapseWhitespace(cloned.Text()), MaxTextLen)
}

// extractLinks collects every http(s) anchor, resolved and normalized.
// Duplicate targets are kept; the store deduplicates per source.
func extractLinks(doc *goquery.Document, base *url.URL) []Link {
	var links []Link

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")

		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		resolved, err := resolve(base, href)
		if err != nil {
			return
		}

		links = append(links, Link{
			TargetURL:  resolved,
			AnchorText: truncate(collapseWhitespace(sel.Text()), MaxAnchorLen),
			Context:    linkContext(sel),
			IsNofollow: isNofollow(sel),
		})
	})

	return links
}

// resolve makes href absolute against base, drops fragments, and rejects
// non-http(s) schemes. The result is normalized.
func resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", abs.Scheme)
	}

	abs.Fragment = ""

	return frontier.NormalizeURL(abs.String())
}

// linkContext returns up to ContextRadius characters of surrounding text on
// each side of the anchor within its parent element.
func linkContext(sel *goquery.Selection) string {
	anchor := collapseWhitespace(sel.Text())
	parent := collapseWhitespace(sel.Parent().Text())

	if parent == "" || parent == anchor {
		return ""
	}

	idx := strings.Index(parent, anchor)
	if idx < 0 || anchor == "" {
		return truncate(parent, 2*ContextRadius)
	}

	start := idx - ContextRadius
	if start < 0 {
		start = 0
	}

	end := idx + len(anchor) + ContextRadius
	if end > len(parent) {
		end = len(parent)
	}

	return strings.TrimSpace(parent[start:end])
}

// isNofollow reports whether the anchor's rel marks it as not endorsed.
func isNofollow(sel *goquery.Selection) bool {
	rel, _ := sel.Attr("rel")

	for _, token := range strings.Fields(strings.ToLower(rel)) {
		switch token {
		case "nofollow", "ugc", "sponsored":
			return true
		}
	}

	return false
}

func sameHost(base *url.URL, target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}

	return strings.EqualFold(u.Hostname(), base.Hostname())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	return s[:maxLen]
}
