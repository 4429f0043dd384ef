// Package identity resolves a WebSocket upgrade request to an optional
// display name. The room service never stores credentials; it only asks a
// Provider who, if anyone, is on the other end.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// SessionCookieName carries the session token set by the web frontend.
const SessionCookieName = "partyline_session"

// ErrNoIdentity means the request carries no credentials. The connection is
// served anonymously.
var ErrNoIdentity = errors.New("no identity")

// Provider resolves the identity of an upgrade request.
type Provider interface {
	Resolve(ctx context.Context, r *http.Request) (string, error)
}

// Anonymous resolves every request to no identity.
type Anonymous struct{}

// Resolve always reports ErrNoIdentity.
func (Anonymous) Resolve(context.Context, *http.Request) (string, error) {
	return "", ErrNoIdentity
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, r *http.Request) (string, error)

// Resolve calls fn.
func (fn ProviderFunc) Resolve(ctx context.Context, r *http.Request) (string, error) {
	return fn(ctx, r)
}

// TokenFromRequest returns the session cookie, or a bearer token from the
// Authorization header when the cookie is absent.
func TokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return ""
}
