package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/louisbranch/partyline/internal/platform/errors"
)

// sessionClaims is the session token body issued by the web frontend.
type sessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// JWTProvider verifies HS256 session tokens with a shared secret.
type JWTProvider struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTProvider builds a provider. issuer is checked only when non-empty.
func NewJWTProvider(secret, issuer string) (*JWTProvider, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "session secret is required for jwt identity")
	}
	return &JWTProvider{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		now:    time.Now,
	}, nil
}

// Resolve returns the username claim, falling back to sub.
func (p *JWTProvider) Resolve(_ context.Context, r *http.Request) (string, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return "", ErrNoIdentity
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithLeeway(5 * time.Second),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return "", mapJWTError(err)
	}

	username := strings.TrimSpace(claims.Username)
	if username == "" {
		username = strings.TrimSpace(claims.Subject)
	}
	if username == "" {
		return "", apperrors.New(apperrors.CodeIdentityInvalid, "session token has no username")
	}
	return username, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.WrapWithMetadata(apperrors.CodeIdentityInvalid, "session token expired",
			map[string]string{"reason": "expired"}, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return apperrors.WrapWithMetadata(apperrors.CodeIdentityInvalid, "session token issuer mismatch",
			map[string]string{"reason": "issuer"}, err)
	default:
		return apperrors.Wrap(apperrors.CodeIdentityInvalid, "invalid session token", err)
	}
}
