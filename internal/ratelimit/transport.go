package ratelimit

import (
	"context"
	"net/http"
)

type priorityKey struct{}

// WithPriority tags ctx so Transport draws from the matching pool.
func WithPriority(ctx context.Context, p Priority) context.Context {
	return context.WithValue(ctx, priorityKey{}, p)
}

// PriorityFrom returns the priority stored in ctx, PriorityLow by default.
func PriorityFrom(ctx context.Context) Priority {
	if p, ok := ctx.Value(priorityKey{}).(Priority); ok {
		return p
	}
	return PriorityLow
}

// Transport is an http.RoundTripper that waits for provider budget before
// every outgoing request.
type Transport struct {
	Base  http.RoundTripper
	Pacer *Pacer
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Pacer != nil {
		if err := t.Pacer.WaitForBudget(req.Context(), PriorityFrom(req.Context())); err != nil {
			return nil, err
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
