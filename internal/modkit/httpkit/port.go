// Package httpkit provides tiny HTTP helpers and adapters
package httpkit

import (
	"crypto/subtle"
	"net/http"
	"strings"

	perrs "olivebranch/internal/platform/errors"
)

// InternalTokenHeader carries the shared secret between internal services
const InternalTokenHeader = "X-Internal-Token"

// TokenFunc validates a presented token and returns the caller identity
type TokenFunc func(token string) (callerID string, err error)

// Port implements middleware.AuthPort by reading X-Internal-Token and
// delegating to a TokenFunc
type Port struct {
	parse TokenFunc
}

// NewPortFunc builds a Port from a simple parser function
func NewPortFunc(fn TokenFunc) *Port {
	return &Port{parse: fn}
}

// NewSharedSecretPort builds a Port that accepts exactly one shared secret.
// The compare is constant time; the caller identity is fixed
func NewSharedSecretPort(secret, callerID string) *Port {
	return &Port{parse: func(token string) (string, error) {
		if secret == "" {
			return "", perrs.Unauthorizedf("internal auth not configured")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			return "", perrs.Unauthorizedf("invalid internal token")
		}
		return callerID, nil
	}}
}

// Parse extracts the caller id from the X-Internal-Token header.
// Returns unauthorized when the header is missing, empty, or rejected
func (p *Port) Parse(r *http.Request) (string, string, error) {
	raw := strings.TrimSpace(r.Header.Get(InternalTokenHeader))
	if raw == "" {
		return "", "", perrs.Unauthorizedf("missing internal token")
	}
	if p.parse == nil {
		return "", "", perrs.Unauthorizedf("invalid internal token")
	}
	caller, err := p.parse(raw)
	if err != nil {
		return "", "", perrs.Unauthorizedf("invalid internal token")
	}
	return caller, "", nil
}
