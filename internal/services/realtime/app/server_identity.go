package app

import (
	"strings"

	apperrors "github.com/louisbranch/partyline/internal/platform/errors"
	"github.com/louisbranch/partyline/internal/services/realtime/identity"
)

// Identity modes selectable through Config.IdentityMode.
const (
	IdentityJWT        = "jwt"
	IdentityIntrospect = "introspect"
	IdentityAnonymous  = "anonymous"
)

func newIdentityProvider(config Config) (identity.Provider, error) {
	mode := strings.ToLower(strings.TrimSpace(config.IdentityMode))
	switch mode {
	case "", IdentityJWT:
		return identity.NewJWTProvider(config.SessionSecret, config.SessionIssuer)
	case IdentityIntrospect:
		return identity.NewIntrospectionProvider(config.AuthBaseURL, config.AuthResourceSecret, nil)
	case IdentityAnonymous:
		if config.RequireIdentity {
			return nil, apperrors.New(apperrors.CodeConfigInvalid, "anonymous identity mode cannot require identity")
		}
		return identity.Anonymous{}, nil
	default:
		return nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "unknown identity mode",
			map[string]string{"mode": mode})
	}
}
