package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authfront/auth-front/internal/config"
)

// ErrRejected reports that the provider refused the presented credential
// (HTTP 400 or 401): an expired or revoked refresh token, an invalid
// authorization code, a stale access token. Callers translate it into a
// 401 with cleared cookies. Transport and server failures are returned as
// ordinary errors and must not be collapsed into this.
var ErrRejected = errors.New("credential rejected by provider")

// TokenSet is the result of a successful grant. It lives in memory for the
// duration of one request and in the browser's cookies (encrypted) between
// requests; it is never persisted server-side.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	// ExpiresAt is zero when the provider did not send expires_in.
	ExpiresAt time.Time
	// IDToken holds the decoded ID-token claims, nil when the provider
	// sent none or verification failed.
	IDToken map[string]any
}

// Provider abstracts the identity provider the gateway delegates to.
type Provider interface {
	// AuthorizationURL builds the provider's authorization endpoint URL
	// carrying the opaque state token.
	AuthorizationURL(state string) string

	// GrantAuthorizationCode exchanges an authorization code for a token
	// set. Returns ErrRejected when the provider refuses the code.
	GrantAuthorizationCode(ctx context.Context, code string) (*TokenSet, error)

	// GrantRefreshToken exchanges a refresh token for a fresh token set.
	// Returns ErrRejected when the refresh token is expired or revoked.
	GrantRefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)

	// Userinfo fetches the claims for an access token. Returns ErrRejected
	// when the token is no longer accepted.
	Userinfo(ctx context.Context, accessToken string) (map[string]any, error)
}

// New creates a Provider from the configured discriminator. The context
// covers background key fetching for providers that verify ID tokens.
func New(ctx context.Context, cfg config.ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderTypeOIDC:
		return NewOIDC(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %q", cfg.Provider)
	}
}
