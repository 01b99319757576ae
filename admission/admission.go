// Package admission decides whether a new client may open a connection or
// issue a request. A Policy chains exemptions, request shielding, bot
// detection, and rate windows, and always fails closed when one of its
// backends cannot answer.
package admission

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Decision is the outcome of evaluating one connection attempt.
type Decision int

const (
	// GateError is the zero value so an unset decision never admits.
	GateError Decision = iota
	Allow
	Deny
	RateLimited
)

// String returns the metric/log label for d.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case RateLimited:
		return "rate_limited"
	default:
		return "gate_error"
	}
}

// Admitted reports whether d lets the attempt through.
func (d Decision) Admitted() bool {
	return d == Allow
}

var (
	// ErrEvaluatorUnavailable wraps backend failures surfaced as GateError.
	ErrEvaluatorUnavailable = errors.New("admission evaluator unavailable")
	// ErrEvaluatorPanic is returned by Decide when the evaluator panicked.
	ErrEvaluatorPanic = errors.New("admission evaluator panicked")
)

// Request is the metadata of a connection attempt the policy looks at.
type Request struct {
	RemoteIP  string
	UserAgent string
	Origin    string
	Path      string
	RawQuery  string
}

// Evaluator decides on a single connection attempt.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (Decision, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, req Request) (Decision, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, req Request) (Decision, error) {
	return f(ctx, req)
}

// Decide runs e and normalizes its answer: any error, and any panic inside
// the evaluator, becomes GateError so that a failed evaluation never admits.
func Decide(ctx context.Context, e Evaluator, req Request) (decision Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			decision, err = GateError, fmt.Errorf("%w: %v", ErrEvaluatorPanic, r)
		}
	}()

	decision, err = e.Evaluate(ctx, req)
	if err != nil {
		return GateError, err
	}
	return decision, nil
}

// NewRequest extracts policy metadata from an HTTP request.
func NewRequest(r *http.Request, trustProxy bool, trustedNetworks []string) Request {
	return Request{
		RemoteIP:  ClientIP(r, trustProxy, trustedNetworks),
		UserAgent: r.UserAgent(),
		Origin:    r.Header.Get("Origin"),
		Path:      r.URL.Path,
		RawQuery:  r.URL.RawQuery,
	}
}

// ClientIP extracts the real client IP address from the request.
// Forwarding headers are honoured only when trustProxy is set and the direct
// peer sits inside one of trustedNetworks.
func ClientIP(r *http.Request, trustProxy bool, trustedNetworks []string) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}
	if !trustProxy || !isTrustedProxy(directIP, trustedNetworks) {
		return directIP
	}

	// X-Forwarded-For can contain multiple IPs, the first one is the client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func isTrustedProxy(ip string, trustedNetworks []string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range trustedNetworks {
		if !strings.Contains(network, "/") {
			if trusted := net.ParseIP(network); trusted != nil && trusted.Equal(parsed) {
				return true
			}
			continue
		}
		_, ipNet, err := net.ParseCIDR(network)
		if err == nil && ipNet.Contains(parsed) {
			return true
		}
	}
	return false
}
