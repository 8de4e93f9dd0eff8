// Package scope provides helpers to capture and restore multi-tenant
// execution identity (owner, project, environment) from/to context.Context.
//
// The engine stamps new hooks with the identity captured from the caller's
// context when the hook payload leaves those fields empty, so hooks created
// from inside a tenant-scoped request are attributable without the runtime
// threading identity through every payload.
package scope

import "context"

// Identity is the multi-tenant execution identity carried on a context.
type Identity struct {
	OwnerID     string
	ProjectID   string
	Environment string
}

// Zero reports whether no identity is set.
func (i Identity) Zero() bool {
	return i == Identity{}
}

type ctxKey struct{}

// With attaches the identity to the context. If the identity is zero, the
// context is returned unchanged (no-op).
func With(ctx context.Context, ident Identity) context.Context {
	if ident.Zero() {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, ident)
}

// Capture extracts the identity from the context.
// Returns the zero Identity if none is present.
func Capture(ctx context.Context) Identity {
	ident, _ := ctx.Value(ctxKey{}).(Identity)
	return ident
}
