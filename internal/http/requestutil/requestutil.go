// Package requestutil extracts and sanitizes per-request identity: the
// request id, the client address and the acting editor.
package requestutil

import (
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
	// ActorHeader names the editor making a request.
	ActorHeader = "X-Actor"
)

var (
	requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	actorPattern     = regexp.MustCompile(`^[a-zA-Z0-9_.@-]{1,64}$`)
)

// newID is swapped in tests.
var newID = uuid.NewString

// SanitizeRequestID validates the incoming request ID header and generates a new one when invalid.
func SanitizeRequestID(incoming string) string {
	if incoming != "" && requestIDPattern.MatchString(incoming) {
		return incoming
	}
	return NewRequestID()
}

// NewRequestID generates a random request ID.
func NewRequestID() string {
	return newID()
}

// Actor returns the sanitized X-Actor header, or "" when absent or malformed.
func Actor(r *http.Request) string {
	if r == nil {
		return ""
	}
	v := strings.TrimSpace(r.Header.Get(ActorHeader))
	if !actorPattern.MatchString(v) {
		return ""
	}
	return v
}

// ClientIP extracts the client IP from X-Forwarded-For, X-Real-IP or RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
