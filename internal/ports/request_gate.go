package ports

import "context"

// RequestGate delays outgoing requests, for example to honour a remote
// rate limit. Fetchers consult the gate carried by the request context
// before every attempt, retries included.
type RequestGate interface {
	// Wait blocks until a request may be sent or ctx is done.
	Wait(ctx context.Context) error
}

type requestGateKey struct{}

// WithRequestGate returns a context whose requests pass through g.
func WithRequestGate(ctx context.Context, g RequestGate) context.Context {
	return context.WithValue(ctx, requestGateKey{}, g)
}

// RequestGateFrom returns the gate attached to ctx, or nil.
func RequestGateFrom(ctx context.Context) RequestGate {
	g, _ := ctx.Value(requestGateKey{}).(RequestGate)
	return g
}
