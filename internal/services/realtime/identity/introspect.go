package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/partyline/internal/platform/errors"
	"github.com/louisbranch/partyline/internal/platform/timeouts"
)

type introspectResponse struct {
	Active   bool   `json:"active"`
	Username string `json:"username"`
}

// IntrospectionProvider asks an auth service whether a token is active.
type IntrospectionProvider struct {
	authBaseURL    string
	resourceSecret string
	httpClient     *http.Client
}

// NewIntrospectionProvider builds a provider calling <authBaseURL>/introspect.
// A nil client uses one with the identity request timeout.
func NewIntrospectionProvider(authBaseURL, resourceSecret string, client *http.Client) (*IntrospectionProvider, error) {
	authBaseURL = strings.TrimSpace(authBaseURL)
	resourceSecret = strings.TrimSpace(resourceSecret)
	if authBaseURL == "" || resourceSecret == "" {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "auth base url and resource secret are required for introspection")
	}
	if client == nil {
		client = &http.Client{Timeout: timeouts.IdentityRequest}
	}
	return &IntrospectionProvider{
		authBaseURL:    strings.TrimRight(authBaseURL, "/"),
		resourceSecret: resourceSecret,
		httpClient:     client,
	}, nil
}

// Resolve posts the request token to the auth service.
func (p *IntrospectionProvider) Resolve(ctx context.Context, r *http.Request) (string, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return "", ErrNoIdentity
	}

	callCtx, cancel := context.WithTimeout(ctx, timeouts.IdentityRequest)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, p.authBaseURL+"/introspect", nil)
	if err != nil {
		return "", fmt.Errorf("build introspection request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Resource-Secret", p.resourceSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeIdentityUnavailable, "call auth introspection", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", apperrors.WithMetadata(apperrors.CodeIdentityUnavailable, "auth introspection failed",
			map[string]string{"status": fmt.Sprint(resp.StatusCode)})
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.WithMetadata(apperrors.CodeIdentityInvalid, "auth introspection rejected token",
			map[string]string{"status": fmt.Sprint(resp.StatusCode)})
	}

	var payload introspectResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", apperrors.Wrap(apperrors.CodeIdentityUnavailable, "decode introspection response", err)
	}
	if !payload.Active {
		return "", apperrors.New(apperrors.CodeIdentityInvalid, "inactive session token")
	}
	username := strings.TrimSpace(payload.Username)
	if username == "" {
		return "", apperrors.New(apperrors.CodeIdentityInvalid, "introspection returned empty username")
	}
	return username, nil
}
