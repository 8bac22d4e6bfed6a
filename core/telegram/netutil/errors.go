// Package netutil classifies errors returned while talking to the Telegram Bot API.
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"regexp"
	"time"

	tele "gopkg.in/telebot.v4"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// ShouldRetry reports whether err is a transient transport failure: a timeout,
// a failed dial or a temporary network error.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) { //nolint:staticcheck
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// RetryAfter extracts the wait Telegram asked for in a 429 reply.
func RetryAfter(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	return 0, false
}

// StatusCode returns the HTTP-like status Telegram attached to err, or 0.
func StatusCode(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	return 0
}

// Kind buckets err for logging: timeout, dns, dial, tls, flood, http_4xx, http_5xx or unknown.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var (
		dnsErr   *net.DNSError
		netErr   net.Error
		opErr    *net.OpError
		alertErr tls.AlertError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &alertErr):
		return "tls"
	}
	switch code := StatusCode(err); {
	case code == http.StatusTooManyRequests:
		return "flood"
	case code >= 500:
		return "http_5xx"
	case code >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// Redact removes bot tokens that net/http embeds in request URLs.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return RedactString(err.Error())
}

// RedactString masks bot tokens embedded in s, typically a Bot API URL.
func RedactString(s string) string {
	return tokenRe.ReplaceAllString(s, "bot<redacted>")
}
