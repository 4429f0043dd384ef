package requestctx

import (
	"context"
	"strings"
)

// identityContextKey is the context key for the resolved display name.
type identityContextKey struct{}

// WithIdentity stores a resolved display name in context. Blank names are
// not stored so anonymous requests stay indistinguishable from unset ones.
func WithIdentity(ctx context.Context, username string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return ctx
	}
	return context.WithValue(ctx, identityContextKey{}, username)
}

// IdentityFromContext returns the display name stored in context.
func IdentityFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(identityContextKey{}).(string)
	return value, ok && value != ""
}
