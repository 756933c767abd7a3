package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/authfront/auth-front/internal/cookie"
	jsonwriter "github.com/authfront/auth-front/internal/json"
	"github.com/authfront/auth-front/internal/log"
	"github.com/authfront/auth-front/internal/notifier"
	"github.com/authfront/auth-front/internal/provider"
	"github.com/authfront/auth-front/internal/state"
	"golang.org/x/sync/singleflight"
)

const unauthorizedBody = "401 Unauthorized"

// GatewayHandlers implements the three-route authentication flow: login
// redirects to the provider, callback completes the code exchange, and
// validate answers the per-request allow/deny question for the upstream
// proxy.
type GatewayHandlers struct {
	provider provider.Provider
	cookies  *cookie.Codec
	states   *state.Codec
	notify   notifier.Notifier

	// refreshGroup collapses concurrent refresh grants for the same
	// refresh token into one provider call. An upstream sending a burst
	// of requests with an expired access token would otherwise race
	// several refreshes, some of which providers reject as replays.
	refreshGroup singleflight.Group
}

// NewGatewayHandlers creates the gateway handlers with their dependencies.
func NewGatewayHandlers(p provider.Provider, cookies *cookie.Codec, states *state.Codec, notify notifier.Notifier) *GatewayHandlers {
	return &GatewayHandlers{
		provider: p,
		cookies:  cookies,
		states:   states,
		notify:   notify,
	}
}

// Register mounts the gateway routes on the mux.
func (h *GatewayHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /login", h.LoginHandler)
	mux.HandleFunc("GET /callback", h.CallbackHandler)
	mux.HandleFunc("GET /validate", h.ValidateHandler)
}

// LoginHandler begins the OAuth flow: it wraps the caller's intended
// destination in an encrypted state token and redirects the browser to
// the provider's authorization endpoint.
func (h *GatewayHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		target = "/"
	}

	stateToken, err := h.states.Serialize(state.Redirect{URL: target})
	if err != nil {
		log.LogErrorWithFields("gateway", "Failed to serialize state token", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Internal server error")
		return
	}

	http.Redirect(w, r, h.provider.AuthorizationURL(stateToken), http.StatusFound)
}

// CallbackHandler receives the provider redirect carrying the
// authorization code, exchanges it for a token set, sets the session
// cookies, and sends the browser back to its original destination.
func (h *GatewayHandlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		h.denyWithCookies(w)
		return
	}

	tokenSet, err := h.provider.GrantAuthorizationCode(r.Context(), code)
	if errors.Is(err, provider.ErrRejected) {
		log.LogWarnWithFields("gateway", "Authorization code rejected", map[string]any{
			"error": err.Error(),
		})
		h.denyWithCookies(w)
		return
	}
	if err != nil {
		log.LogErrorWithFields("gateway", "Authorization code exchange failed", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteBadGateway(w, "Identity provider unavailable")
		return
	}

	// Awaited before responding so failures are observable, but never
	// allowed to alter the authentication outcome.
	h.notifyIDToken(r.Context(), tokenSet)

	if err := h.cookies.SetFromTokenSet(w, tokenSet); err != nil {
		log.LogErrorWithFields("gateway", "Failed to serialize session cookies", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Internal server error")
		return
	}

	target := "/"
	if redirect := h.states.Parse(r.URL.Query().Get("state")); redirect != nil && redirect.URL != "" {
		target = redirect.URL
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// ValidateHandler answers the upstream proxy's per-request auth check.
// A valid access token is always tried first; only when it fails is the
// refresh token spent. Cookie rewrites are expressed as x-auth-set-cookie
// headers for the upstream proxy to forward.
func (h *GatewayHandlers) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.userinfoRefresh(r)
	if err != nil {
		// Provider unreachable says nothing about the session; the
		// cookies stay untouched.
		log.LogErrorWithFields("gateway", "Validate failed against provider", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteBadGateway(w, "Identity provider unavailable")
		return
	}
	if result == nil {
		h.denyWithHeaders(w)
		return
	}

	if result.tokenSet != nil {
		cookies, err := h.cookies.SerializeTokenSet(result.tokenSet)
		if err != nil {
			log.LogErrorWithFields("gateway", "Failed to serialize refreshed cookies", map[string]any{
				"error": err.Error(),
			})
			jsonwriter.WriteInternalServerError(w, "Internal server error")
			return
		}
		setAuthCookieHeaders(w, cookies)

		if result.tokenSet.IDToken != nil {
			if payload, err := json.Marshal(result.tokenSet.IDToken); err == nil {
				w.Header().Set("x-auth-id-token", string(payload))
			}
		}
		h.notifyIDToken(r.Context(), result.tokenSet)
	}

	userinfo, err := json.Marshal(result.userinfo)
	if err != nil {
		jsonwriter.WriteInternalServerError(w, "Internal server error")
		return
	}
	w.Header().Set("x-auth-userinfo", string(userinfo))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("200 OK"))
}

// refreshResult is the outcome of a successful validate: the claims, plus
// the refreshed token set when the session was renewed on the way.
type refreshResult struct {
	userinfo map[string]any
	tokenSet *provider.TokenSet
}

// userinfoRefresh resolves the request's session. Returns nil when the
// session is denied (no usable tokens), an error only for transport
// failures. The access token is always tried before the refresh token:
// an unexpired access token must never trigger an unnecessary refresh.
func (h *GatewayHandlers) userinfoRefresh(r *http.Request) (*refreshResult, error) {
	ctx := r.Context()

	if accessToken := h.cookies.AccessToken(r); accessToken != "" {
		claims, err := h.provider.Userinfo(ctx, accessToken)
		if err == nil {
			return &refreshResult{userinfo: claims}, nil
		}
		if !errors.Is(err, provider.ErrRejected) {
			return nil, err
		}
		// Stale access token, fall through to the refresh token
	}

	refreshToken := h.cookies.RefreshToken(r)
	if refreshToken == "" {
		return nil, nil
	}

	tokenSet, err := h.grantRefresh(ctx, refreshToken)
	if errors.Is(err, provider.ErrRejected) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	claims, err := h.provider.Userinfo(ctx, tokenSet.AccessToken)
	if errors.Is(err, provider.ErrRejected) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &refreshResult{userinfo: claims, tokenSet: tokenSet}, nil
}

// grantRefresh deduplicates concurrent refresh grants per refresh token.
// The grant runs detached from the caller's cancellation: its result is
// shared with collapsed waiters, and must not fail for all of them when
// the first caller disconnects mid-flight.
func (h *GatewayHandlers) grantRefresh(ctx context.Context, refreshToken string) (*provider.TokenSet, error) {
	value, err, _ := h.refreshGroup.Do(refreshToken, func() (any, error) {
		return h.provider.GrantRefreshToken(context.WithoutCancel(ctx), refreshToken)
	})
	if err != nil {
		return nil, err
	}
	return value.(*provider.TokenSet), nil
}

// notifyIDToken forwards freshly obtained ID-token claims downstream.
// Failures are logged and swallowed.
func (h *GatewayHandlers) notifyIDToken(ctx context.Context, tokenSet *provider.TokenSet) {
	if tokenSet == nil || tokenSet.IDToken == nil {
		return
	}
	if err := h.notify.OnIDToken(ctx, tokenSet.IDToken); err != nil {
		log.LogWarnWithFields("gateway", "ID token notification failed", map[string]any{
			"error": err.Error(),
		})
	}
}

// denyWithCookies clears the session via real Set-Cookie headers, for
// responses going straight back to the browser.
func (h *GatewayHandlers) denyWithCookies(w http.ResponseWriter) {
	h.cookies.Clear(w)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody))
}

// denyWithHeaders clears the session via x-auth-set-cookie headers, for
// responses consumed by the upstream proxy.
func (h *GatewayHandlers) denyWithHeaders(w http.ResponseWriter) {
	setAuthCookieHeaders(w, h.cookies.SerializeClear())
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody))
}

func setAuthCookieHeaders(w http.ResponseWriter, cookies []string) {
	for i, value := range cookies {
		w.Header().Set(fmt.Sprintf("x-auth-set-cookie-%d", i+1), value)
	}
}
