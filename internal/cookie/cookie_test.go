package cookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/authfront/auth-front/internal/config"
	"github.com/authfront/auth-front/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec() *Codec {
	return NewCodec(config.CookieConfig{
		Secret:           "test-cookie-secret",
		AccessTokenName:  "sat",
		RefreshTokenName: "srt",
	})
}

func requestWithCookies(t *testing.T, rec *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/validate", nil)
	for _, ck := range rec.Result().Cookies() {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	return req
}

func TestSetAndGetTokens(t *testing.T) {
	codec := newTestCodec()

	rec := httptest.NewRecorder()
	err := codec.SetFromTokenSet(rec, &provider.TokenSet{
		AccessToken:  "AT1",
		RefreshToken: "RT1",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, rec.Result().Cookies(), 2)

	req := requestWithCookies(t, rec)
	assert.Equal(t, "AT1", codec.AccessToken(req))
	assert.Equal(t, "RT1", codec.RefreshToken(req))
}

func TestCookieValuesAreEncrypted(t *testing.T) {
	codec := newTestCodec()

	rec := httptest.NewRecorder()
	require.NoError(t, codec.SetFromTokenSet(rec, &provider.TokenSet{
		AccessToken:  "AT1",
		RefreshToken: "RT1",
	}))

	for _, ck := range rec.Result().Cookies() {
		assert.NotContains(t, ck.Value, "AT1")
		assert.NotContains(t, ck.Value, "RT1")
	}
}

func TestAccessCookieCarriesTokenExpiry(t *testing.T) {
	codec := newTestCodec()
	expiresAt := time.Now().Add(time.Hour)

	cookies, err := codec.SerializeTokenSet(&provider.TokenSet{
		AccessToken:  "AT1",
		RefreshToken: "RT1",
		ExpiresAt:    expiresAt,
	})
	require.NoError(t, err)
	require.Len(t, cookies, 2)

	header := http.Header{}
	header.Add("Set-Cookie", cookies[0])
	access := (&http.Response{Header: header}).Cookies()[0]
	assert.Equal(t, "sat", access.Name)
	assert.WithinDuration(t, expiresAt, access.Expires, time.Second)

	header = http.Header{}
	header.Add("Set-Cookie", cookies[1])
	refresh := (&http.Response{Header: header}).Cookies()[0]
	assert.Equal(t, "srt", refresh.Name)
	assert.True(t, refresh.Expires.IsZero(), "refresh cookie must not carry a forced expiry")
}

func TestSerializeNilTokenSetClears(t *testing.T) {
	codec := newTestCodec()

	cookies, err := codec.SerializeTokenSet(nil)
	require.NoError(t, err)
	require.Len(t, cookies, 2)

	for _, value := range cookies {
		header := http.Header{}
		header.Add("Set-Cookie", value)
		ck := (&http.Response{Header: header}).Cookies()[0]
		assert.Empty(t, ck.Value)
		assert.True(t, ck.Expires.Before(time.Now()), "clearing cookie must expire in the past")
	}
}

func TestMissingRefreshTokenClearsRefreshCookie(t *testing.T) {
	codec := newTestCodec()

	cookies, err := codec.SerializeTokenSet(&provider.TokenSet{AccessToken: "AT1"})
	require.NoError(t, err)
	require.Len(t, cookies, 2)

	header := http.Header{}
	header.Add("Set-Cookie", cookies[1])
	refresh := (&http.Response{Header: header}).Cookies()[0]
	assert.Empty(t, refresh.Value)
}

func TestCorruptedCookieReadsAsAbsent(t *testing.T) {
	codec := newTestCodec()

	req := httptest.NewRequest(http.MethodGet, "/validate", nil)
	req.AddCookie(&http.Cookie{Name: "sat", Value: "not-an-envelope"})
	req.AddCookie(&http.Cookie{Name: "srt", Value: ""})

	assert.Empty(t, codec.AccessToken(req))
	assert.Empty(t, codec.RefreshToken(req))
}

func TestForeignSecretCookieReadsAsAbsent(t *testing.T) {
	other := NewCodec(config.CookieConfig{
		Secret:           "different-secret",
		AccessTokenName:  "sat",
		RefreshTokenName: "srt",
	})

	rec := httptest.NewRecorder()
	require.NoError(t, other.SetFromTokenSet(rec, &provider.TokenSet{
		AccessToken:  "AT1",
		RefreshToken: "RT1",
	}))

	req := requestWithCookies(t, rec)
	codec := newTestCodec()
	assert.Empty(t, codec.AccessToken(req))
	assert.Empty(t, codec.RefreshToken(req))
}

func TestClearWritesBothCookies(t *testing.T) {
	codec := newTestCodec()

	rec := httptest.NewRecorder()
	codec.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	names := []string{cookies[0].Name, cookies[1].Name}
	assert.ElementsMatch(t, []string{"sat", "srt"}, names)
}
