// Package auth identifies callers and answers capability checks.
//
// The ledger service only ever asks "may this caller do X" through the
// Authorizer interface; how callers are established (JWT bearer tokens
// here) is this package's concern alone.
package auth

import "context"

// Capability names checked by the ledger service.
const (
	CapView   = "funding.view"
	CapManage = "funding.manage"
)

// Caller is the authenticated identity a request acts as.
type Caller struct {
	ID           string
	Name         string
	Capabilities []string
}

// Can reports whether the caller holds the named capability.
// Manage implies view.
func (c Caller) Can(capability string) bool {
	for _, have := range c.Capabilities {
		if have == capability {
			return true
		}
		if capability == CapView && have == CapManage {
			return true
		}
	}
	return false
}

// Authorizer is the opaque allow/deny oracle the ledger service consults.
type Authorizer interface {
	Allowed(ctx context.Context, caller Caller, capability string) bool
}

// CapabilityAuthorizer allows whatever the caller's token claims grant.
type CapabilityAuthorizer struct{}

func (CapabilityAuthorizer) Allowed(_ context.Context, caller Caller, capability string) bool {
	return caller.Can(capability)
}

type ctxKey string

const callerKey ctxKey = "caller"

// WithCaller stores the authenticated caller on the context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey).(Caller)
	return caller, ok
}
