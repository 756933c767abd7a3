package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// ProviderType is the identity-provider discriminator. The set is closed:
// an unknown value is a configuration error at startup, never at first
// request.
type ProviderType string

const (
	ProviderTypeOIDC ProviderType = "oidc"
)

// NotifierType is the outbound notification discriminator.
type NotifierType string

const (
	NotifierTypeRest NotifierType = "rest"
)

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Addr string `json:"addr,omitempty"`
}

// CookieConfig holds the session-cookie configuration. The secret feeds
// the envelope encryption of both cookies and the OAuth state parameter.
type CookieConfig struct {
	SecretRaw        json.RawMessage `json:"secret,omitempty"`
	AccessTokenName  string          `json:"accessTokenName,omitempty"`
	RefreshTokenName string          `json:"refreshTokenName,omitempty"`

	// Computed field, resolved from SecretRaw at load time
	Secret Secret `json:"-"`
}

// ProviderConfig holds the OIDC provider endpoints and client credentials.
//
// Secret values support {"$env": "VAR_NAME"} references resolved at config
// load time, so credentials never have to live in the config file itself.
type ProviderConfig struct {
	Provider        ProviderType    `json:"provider,omitempty"`
	ClientID        string          `json:"clientId"`
	ClientSecretRaw json.RawMessage `json:"clientSecret"`
	AuthURL         string          `json:"authUrl"`
	TokenURL        string          `json:"tokenUrl"`
	UserinfoURL     string          `json:"userinfoUrl"`
	RedirectURL     string          `json:"redirectUrl"`
	JWKSURL         string          `json:"jwksUrl,omitempty"`
	Scopes          []string        `json:"scopes,omitempty"`

	// Computed field, resolved from ClientSecretRaw at load time
	ClientSecret Secret `json:"-"`
}

// NotifierConfig holds the optional downstream notification endpoint that
// receives decoded ID tokens.
type NotifierConfig struct {
	API              NotifierType    `json:"api,omitempty"`
	AuthorizationRaw json.RawMessage `json:"authorization,omitempty"`
	IDTokenEndpoint  string          `json:"idTokenEndpoint,omitempty"`

	// Computed field, resolved from AuthorizationRaw at load time
	Authorization Secret `json:"-"`
}

// Config represents the full gateway configuration with resolved values
type Config struct {
	Server   ServerConfig    `json:"server"`
	Cookie   CookieConfig    `json:"cookie"`
	Provider ProviderConfig  `json:"provider"`
	API      *NotifierConfig `json:"api,omitempty"`
}

// ParseConfigValue parses a JSON value that could be a plain string or an
// {"$env": "VAR_NAME"} reference object. The explicit JSON syntax avoids
// accidental shell expansion of $VAR in startup scripts and keeps intent
// unambiguous.
func ParseConfigValue(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	return value, nil
}
