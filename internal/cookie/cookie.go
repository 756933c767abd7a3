package cookie

import (
	"net/http"
	"time"

	"github.com/authfront/auth-front/internal/config"
	"github.com/authfront/auth-front/internal/crypto"
	"github.com/authfront/auth-front/internal/envutil"
	"github.com/authfront/auth-front/internal/provider"
)

// Codec turns a token set into the two session cookies and back. Each
// cookie value is an independently encrypted envelope; the codec is the
// only reader and writer of its cookie names and keeps no state between
// requests, since the browser's cookie store is the persistence layer.
type Codec struct {
	engine      *crypto.Engine
	accessName  string
	refreshName string
}

// NewCodec creates a codec keyed by the configured cookie secret.
func NewCodec(cfg config.CookieConfig) *Codec {
	return &Codec{
		engine:      crypto.NewEngine(string(cfg.Secret)),
		accessName:  cfg.AccessTokenName,
		refreshName: cfg.RefreshTokenName,
	}
}

// SerializeTokenSet produces the two Set-Cookie values for a token set.
// A nil token set yields clearing directives for both cookies, which is
// how logout and session invalidation are expressed. The access cookie
// expires with the access token so the browser stops sending it once it
// is known-stale; the refresh cookie carries no forced expiry.
func (c *Codec) SerializeTokenSet(ts *provider.TokenSet) ([]string, error) {
	if ts == nil {
		return c.SerializeClear(), nil
	}

	access, err := c.serialize(c.accessName, ts.AccessToken, ts.ExpiresAt)
	if err != nil {
		return nil, err
	}
	refresh, err := c.serialize(c.refreshName, ts.RefreshToken, time.Time{})
	if err != nil {
		return nil, err
	}
	return []string{access, refresh}, nil
}

// SerializeClear produces clearing directives for both cookies.
func (c *Codec) SerializeClear() []string {
	return []string{
		clearCookie(c.accessName).String(),
		clearCookie(c.refreshName).String(),
	}
}

// SetFromTokenSet writes both session cookies onto the response. The
// values are fully computed before the first header write, so a response
// can never carry only one of the two cookies.
func (c *Codec) SetFromTokenSet(w http.ResponseWriter, ts *provider.TokenSet) error {
	cookies, err := c.SerializeTokenSet(ts)
	if err != nil {
		return err
	}
	for _, value := range cookies {
		w.Header().Add("Set-Cookie", value)
	}
	return nil
}

// Clear writes clearing directives for both cookies onto the response.
func (c *Codec) Clear(w http.ResponseWriter) {
	for _, value := range c.SerializeClear() {
		w.Header().Add("Set-Cookie", value)
	}
}

// AccessToken recovers the access token from the request, or "" when the
// cookie is absent or undecryptable. A forged or corrupted cookie is
// indistinguishable from "not logged in".
func (c *Codec) AccessToken(r *http.Request) string {
	return c.get(r, c.accessName)
}

// RefreshToken recovers the refresh token from the request, or "".
func (c *Codec) RefreshToken(r *http.Request) string {
	return c.get(r, c.refreshName)
}

func (c *Codec) get(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil || ck.Value == "" {
		return ""
	}
	value, err := c.engine.Decrypt(ck.Value)
	if err != nil {
		return ""
	}
	return value
}

func (c *Codec) serialize(name, value string, expires time.Time) (string, error) {
	if value == "" {
		return clearCookie(name).String(), nil
	}
	encrypted, err := c.engine.Encrypt(value)
	if err != nil {
		return "", err
	}
	ck := &http.Cookie{
		Name:     name,
		Value:    encrypted,
		Path:     "/",
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
	}
	if !expires.IsZero() {
		ck.Expires = expires
	}
	return ck.String(), nil
}

func clearCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:    name,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	}
}
