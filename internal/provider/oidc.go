package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/authfront/auth-front/internal/config"
	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDC implements Provider against a standard OpenID Connect provider
// using the authorization-code and refresh-token grants.
type OIDC struct {
	oauth       oauth2.Config
	userinfoURL string
	httpClient  *http.Client
	// verifier is non-nil only when a JWKS endpoint is configured; then
	// ID-token signature verification is mandatory.
	verifier *gooidc.IDTokenVerifier
}

// NewOIDC creates the OIDC provider client from validated configuration.
func NewOIDC(ctx context.Context, cfg config.ProviderConfig) (*OIDC, error) {
	p := &OIDC{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: string(cfg.ClientSecret),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userinfoURL: cfg.UserinfoURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}

	if cfg.JWKSURL != "" {
		keySet := gooidc.NewRemoteKeySet(ctx, cfg.JWKSURL)
		p.verifier = gooidc.NewVerifier("", keySet, &gooidc.Config{
			ClientID: cfg.ClientID,
			// The issuer is not part of this configuration surface; the
			// signature and audience checks carry the trust decision.
			SkipIssuerCheck: true,
		})
	}

	return p, nil
}

// AuthorizationURL builds the authorization endpoint URL with
// response_type=code, the configured client and redirect, and the state.
func (p *OIDC) AuthorizationURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// GrantAuthorizationCode exchanges an authorization code at the token
// endpoint.
func (p *OIDC) GrantAuthorizationCode(ctx context.Context, code string) (*TokenSet, error) {
	token, err := p.oauth.Exchange(p.withHTTPClient(ctx), code)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	return p.tokenSet(ctx, token), nil
}

// GrantRefreshToken exchanges a refresh token at the token endpoint.
func (p *OIDC) GrantRefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	source := p.oauth.TokenSource(p.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, classifyTokenError(err)
	}
	return p.tokenSet(ctx, token), nil
}

// Userinfo fetches the claims behind an access token with a bearer GET.
func (p *OIDC) Userinfo(ctx context.Context, accessToken string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: userinfo returned %d", ErrRejected, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("userinfo returned status %d: %s", resp.StatusCode, body)
	}

	var claims map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("decoding userinfo response: %w", err)
	}
	return claims, nil
}

// tokenSet maps an oauth2 token onto the gateway's TokenSet, decoding the
// id_token extra when present.
func (p *OIDC) tokenSet(ctx context.Context, token *oauth2.Token) *TokenSet {
	ts := &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
		ts.IDToken = p.decodeIDToken(ctx, raw)
	}
	return ts
}

// withHTTPClient pins the token-endpoint calls to the provider's HTTP
// client so timeouts apply uniformly.
func (p *OIDC) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// classifyTokenError maps a token-endpoint 400/401 onto ErrRejected.
// Anything else (5xx, network failure, timeout) stays a transport error:
// it says nothing about the credential and must not log the user out.
func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		code := retrieveErr.Response.StatusCode
		if code == http.StatusBadRequest || code == http.StatusUnauthorized {
			return fmt.Errorf("%w: token endpoint returned %d", ErrRejected, code)
		}
	}
	return err
}
