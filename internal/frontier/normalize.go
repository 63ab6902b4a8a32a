// Package frontier provides URL normalization and hashing for the crawl
// frontier. URLs are normalized before deduplication so that the same URL
// expressed differently produces the same string and hash.
package frontier

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// defaultPorts maps schemes to their default port strings.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var (
	errEmptyInput          = errors.New("normalize url: empty input")
	errUnsupportedScheme   = errors.New("normalize url: unsupported scheme")
	errMissingSchemeOrHost = errors.New("normalize url: missing scheme or host")
	errEmptyHostInput      = errors.New("extract host: empty input")
)

// NormalizeURL applies deterministic transformations to a raw URL so that
// equivalent URLs produce identical strings: lowercased scheme and host,
// default ports removed, percent-encoding normalized, fragment removed,
// dot-segments resolved, and trailing slashes stripped everywhere except the
// root path. Query parameter order is preserved. The transformation is
// idempotent: NormalizeURL(NormalizeURL(u)) == NormalizeURL(u).
func NormalizeURL(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errEmptyInput
	}

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("normalize url: %w", err)
	}

	if validateErr := validateParsedURL(parsed); validateErr != nil {
		return "", validateErr
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = normalizeHost(parsed)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.Path = normalizePath(parsed.Path)
	// Dropping RawPath forces String() to re-encode the path, which
	// normalizes percent-encoding.
	parsed.RawPath = ""
	parsed.RawQuery = normalizeQuery(parsed.RawQuery)

	return parsed.String(), nil
}

// URLHash normalizes the given URL and returns its SHA-256 hex digest.
func URLHash(rawURL string) (string, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return "", fmt.Errorf("url hash: %w", err)
	}

	sum := sha256.Sum256([]byte(normalized))

	return hex.EncodeToString(sum[:]), nil
}

// ExtractHost returns the hostname (without port) from a URL, lowercased.
func ExtractHost(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errEmptyHostInput
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("extract host: %w", err)
	}

	if validateErr := validateParsedURL(parsed); validateErr != nil {
		return "", validateErr
	}

	return strings.ToLower(parsed.Hostname()), nil
}

// Origin returns the scheme://host[:port] prefix of a URL, used as the key
// for robots caching and per-host politeness.
func Origin(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("extract origin: %w", err)
	}

	if validateErr := validateParsedURL(parsed); validateErr != nil {
		return "", validateErr
	}

	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), nil
}

// validateParsedURL checks that a parsed URL has the minimum required
// components and an http(s) scheme.
func validateParsedURL(u *url.URL) error {
	if u.Scheme == "" || u.Host == "" {
		return errMissingSchemeOrHost
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	default:
		return errUnsupportedScheme
	}
}

// normalizeHost lowercases the hostname and removes the scheme's default port.
func normalizeHost(u *url.URL) string {
	hostname := strings.ToLower(u.Hostname())
	port := u.Port()

	if port == "" {
		return hostname
	}

	if defaultPort, ok := defaultPorts[u.Scheme]; ok && port == defaultPort {
		return hostname
	}

	return hostname + ":" + port
}

// normalizePath resolves dot-segments and strips trailing slashes while
// preserving the root "/".
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}

	cleaned := path.Clean(p)
	cleaned = strings.TrimRight(cleaned, "/")

	if cleaned == "" || cleaned == "." {
		return "/"
	}

	return cleaned
}

// normalizeQuery re-encodes each key=value pair in place, preserving the
// original parameter order. Tokens whose percent-encoding cannot be decoded
// are kept verbatim.
func normalizeQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	pairs := strings.Split(rawQuery, "&")
	out := make([]string, 0, len(pairs))

	for _, pair := range pairs {
		if pair == "" {
			continue
		}

		key, value, hasValue := strings.Cut(pair, "=")

		normKey, keyErr := url.QueryUnescape(key)
		if keyErr != nil {
			out = append(out, pair)
			continue
		}

		if !hasValue {
			out = append(out, url.QueryEscape(normKey))
			continue
		}

		normValue, valueErr := url.QueryUnescape(value)
		if valueErr != nil {
			out = append(out, pair)
			continue
		}

		out = append(out, url.QueryEscape(normKey)+"="+url.QueryEscape(normValue))
	}

	return strings.Join(out, "&")
}
