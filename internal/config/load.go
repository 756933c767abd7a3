package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/authfront/auth-front/internal/crypto"
	"github.com/authfront/auth-front/internal/log"
)

const (
	defaultAddr             = ":8080"
	defaultAccessTokenName  = "sat"
	defaultRefreshTokenName = "srt"
)

// Load loads the config file, resolves env var references, applies
// defaults, and validates. Any failure here is fatal before the service
// accepts traffic.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	if err := resolveSecrets(&cfg); err != nil {
		return Config{}, fmt.Errorf("resolving config secrets: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return Config{}, err
	}

	if err := ValidateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// resolveSecrets resolves all {"$env": ...} references into computed fields
func resolveSecrets(cfg *Config) error {
	if cfg.Cookie.SecretRaw != nil {
		value, err := ParseConfigValue(cfg.Cookie.SecretRaw)
		if err != nil {
			return fmt.Errorf("cookie.secret: %w", err)
		}
		cfg.Cookie.Secret = Secret(value)
	}

	if cfg.Provider.ClientSecretRaw != nil {
		value, err := ParseConfigValue(cfg.Provider.ClientSecretRaw)
		if err != nil {
			return fmt.Errorf("provider.clientSecret: %w", err)
		}
		cfg.Provider.ClientSecret = Secret(value)
	}

	if cfg.API != nil && cfg.API.AuthorizationRaw != nil {
		value, err := ParseConfigValue(cfg.API.AuthorizationRaw)
		if err != nil {
			return fmt.Errorf("api.authorization: %w", err)
		}
		cfg.API.Authorization = Secret(value)
	}

	return nil
}

func applyDefaults(cfg *Config) error {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	if cfg.Cookie.AccessTokenName == "" {
		cfg.Cookie.AccessTokenName = defaultAccessTokenName
	}
	if cfg.Cookie.RefreshTokenName == "" {
		cfg.Cookie.RefreshTokenName = defaultRefreshTokenName
	}
	if cfg.Provider.Provider == "" {
		cfg.Provider.Provider = ProviderTypeOIDC
	}
	if len(cfg.Provider.Scopes) == 0 {
		cfg.Provider.Scopes = []string{"openid", "email", "profile"}
	}

	// A missing cookie secret gets a random one. Sessions then survive
	// only as long as the process, which is fine for single-instance
	// deployments but must be configured for horizontal scaling.
	if cfg.Cookie.Secret == "" {
		secret, err := crypto.GenerateSecureToken()
		if err != nil {
			return fmt.Errorf("generating cookie secret: %w", err)
		}
		cfg.Cookie.Secret = Secret(secret)
		log.LogWarnWithFields("config", "No cookie secret configured, generated a random one; sessions will not survive restarts", nil)
	}

	return nil
}
