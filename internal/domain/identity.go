package domain

import "context"

// Identity is an authenticated caller. The zero value means anonymous.
type Identity string

// Anonymous reports whether no caller identity was resolved.
func (i Identity) Anonymous() bool { return i == "" }

type identityKey struct{}

// ContextWithIdentity stores the resolved caller identity in ctx.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller identity, or the anonymous identity.
func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey{}).(Identity); ok {
		return id
	}
	return ""
}
