package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const validConfig = `{
	"server": {"addr": ":9090"},
	"cookie": {
		"secret": {"$env": "TEST_COOKIE_SECRET"}
	},
	"provider": {
		"clientId": "gateway",
		"clientSecret": {"$env": "TEST_CLIENT_SECRET"},
		"authUrl": "https://idp.example.com/auth",
		"tokenUrl": "https://idp.example.com/token",
		"userinfoUrl": "https://idp.example.com/userinfo",
		"redirectUrl": "https://gateway.example.com/callback"
	}
}`

func TestLoadResolvesEnvReferences(t *testing.T) {
	t.Setenv("TEST_COOKIE_SECRET", "cookie-secret-value")
	t.Setenv("TEST_CLIENT_SECRET", "client-secret-value")

	cfg, err := Load(writeConfigFile(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, Secret("cookie-secret-value"), cfg.Cookie.Secret)
	assert.Equal(t, Secret("client-secret-value"), cfg.Provider.ClientSecret)
	assert.Equal(t, "gateway", cfg.Provider.ClientID)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_COOKIE_SECRET", "cookie-secret-value")
	t.Setenv("TEST_CLIENT_SECRET", "client-secret-value")

	cfg, err := Load(writeConfigFile(t, `{
		"cookie": {"secret": {"$env": "TEST_COOKIE_SECRET"}},
		"provider": {
			"clientId": "gateway",
			"clientSecret": {"$env": "TEST_CLIENT_SECRET"},
			"authUrl": "https://idp.example.com/auth",
			"tokenUrl": "https://idp.example.com/token",
			"userinfoUrl": "https://idp.example.com/userinfo",
			"redirectUrl": "https://gateway.example.com/callback"
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sat", cfg.Cookie.AccessTokenName)
	assert.Equal(t, "srt", cfg.Cookie.RefreshTokenName)
	assert.Equal(t, ProviderTypeOIDC, cfg.Provider.Provider)
	assert.Equal(t, []string{"openid", "email", "profile"}, cfg.Provider.Scopes)
}

func TestLoadGeneratesCookieSecretWhenUnset(t *testing.T) {
	t.Setenv("TEST_CLIENT_SECRET", "client-secret-value")

	cfg, err := Load(writeConfigFile(t, `{
		"provider": {
			"clientId": "gateway",
			"clientSecret": {"$env": "TEST_CLIENT_SECRET"},
			"authUrl": "https://idp.example.com/auth",
			"tokenUrl": "https://idp.example.com/token",
			"userinfoUrl": "https://idp.example.com/userinfo",
			"redirectUrl": "https://gateway.example.com/callback"
		}
	}`))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Cookie.Secret)
}

func TestLoadFailsOnMissingEnvVar(t *testing.T) {
	t.Setenv("TEST_CLIENT_SECRET", "client-secret-value")
	os.Unsetenv("TEST_COOKIE_SECRET")

	_, err := Load(writeConfigFile(t, validConfig))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_COOKIE_SECRET")
}

func TestLoadFailsOnMissingRequiredFields(t *testing.T) {
	t.Setenv("TEST_CLIENT_SECRET", "client-secret-value")

	_, err := Load(writeConfigFile(t, `{
		"provider": {
			"clientSecret": {"$env": "TEST_CLIENT_SECRET"},
			"tokenUrl": "https://idp.example.com/token"
		}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clientId")
}

func TestLoadFailsOnUnknownProvider(t *testing.T) {
	t.Setenv("TEST_COOKIE_SECRET", "cookie-secret-value")
	t.Setenv("TEST_CLIENT_SECRET", "client-secret-value")

	_, err := Load(writeConfigFile(t, `{
		"cookie": {"secret": {"$env": "TEST_COOKIE_SECRET"}},
		"provider": {
			"provider": "saml",
			"clientId": "gateway",
			"clientSecret": {"$env": "TEST_CLIENT_SECRET"},
			"authUrl": "https://idp.example.com/auth",
			"tokenUrl": "https://idp.example.com/token",
			"userinfoUrl": "https://idp.example.com/userinfo",
			"redirectUrl": "https://gateway.example.com/callback"
		}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider type")
}

func TestLoadFailsOnInvalidURL(t *testing.T) {
	t.Setenv("TEST_COOKIE_SECRET", "cookie-secret-value")
	t.Setenv("TEST_CLIENT_SECRET", "client-secret-value")

	_, err := Load(writeConfigFile(t, `{
		"cookie": {"secret": {"$env": "TEST_COOKIE_SECRET"}},
		"provider": {
			"clientId": "gateway",
			"clientSecret": {"$env": "TEST_CLIENT_SECRET"},
			"authUrl": "not-a-url",
			"tokenUrl": "https://idp.example.com/token",
			"userinfoUrl": "https://idp.example.com/userinfo",
			"redirectUrl": "https://gateway.example.com/callback"
		}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authUrl")
}

func TestSecretRedaction(t *testing.T) {
	secret := Secret("super-sensitive")
	assert.Equal(t, "***", secret.String())

	data, err := secret.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"***"`, string(data))

	assert.Equal(t, "", Secret("").String())
}

func TestValidateFileReportsAllIssues(t *testing.T) {
	t.Setenv("TEST_COOKIE_SECRET", "cookie-secret-value")
	t.Setenv("TEST_CLIENT_SECRET", "client-secret-value")

	result, err := ValidateFile(writeConfigFile(t, validConfig))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateFileWarnsOnGeneratedCookieSecret(t *testing.T) {
	t.Setenv("TEST_CLIENT_SECRET", "client-secret-value")

	result, err := ValidateFile(writeConfigFile(t, `{
		"provider": {
			"clientId": "gateway",
			"clientSecret": {"$env": "TEST_CLIENT_SECRET"},
			"authUrl": "https://idp.example.com/auth",
			"tokenUrl": "https://idp.example.com/token",
			"userinfoUrl": "https://idp.example.com/userinfo",
			"redirectUrl": "https://gateway.example.com/callback"
		}
	}`))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "cookie.secret", result.Warnings[0].Path)
	assert.Contains(t, result.Warnings[0].Message, "random secret")
}
