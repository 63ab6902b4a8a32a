package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
)

// ErrorKind classifies why a fetch failed. Every failed FetchResult carries
// exactly one kind; the scheduler records it verbatim in crawl_errors.
type ErrorKind string

// Fetch error kinds.
const (
	KindTimeout          ErrorKind = "timeout"
	KindDNS              ErrorKind = "dns"
	KindTLS              ErrorKind = "tls"
	KindHTTPError        ErrorKind = "http_error"
	KindTooManyRedirects ErrorKind = "too_many_redirects"
	KindRobotsDenied     ErrorKind = "robots_denied"
	KindCancelled        ErrorKind = "cancelled"
)

// errTooManyRedirects aborts the redirect chain at the hop cap.
var errTooManyRedirects = errors.New("stopped after too many redirects")

// classify maps a transport error to its kind. The order matters: a DNS
// timeout is a DNS failure, not a generic timeout.
func classify(err error) ErrorKind {
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS
	}

	if isTLSError(err) {
		return KindTLS
	}

	if errors.Is(err, errTooManyRedirects) {
		return KindTooManyRedirects
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	// Connection refused, resets, and other transport errors behave like
	// timeouts for retry purposes.
	return KindTimeout
}

func isTLSError(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)

	return errors.As(err, &recordErr) ||
		errors.As(err, &certErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr)
}

// retryable reports whether a fetch attempt with this outcome may be tried
// again on the backoff schedule.
func retryable(kind ErrorKind, status int) bool {
	switch kind {
	case KindTimeout, KindDNS:
		return true
	case KindHTTPError:
		return status >= 500
	default:
		return false
	}
}
