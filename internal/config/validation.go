package config

import (
	"fmt"
	"net/url"
)

// ValidationIssue describes one problem found during validation
type ValidationIssue struct {
	Path    string
	Message string
}

// ValidationResult collects all issues found in a config file
type ValidationResult struct {
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// ValidateConfig validates a loaded config, failing on the first error.
// Required provider fields are enforced here so that a misconfigured
// gateway dies at startup instead of at the first request.
func ValidateConfig(cfg *Config) error {
	result := validate(cfg)
	if len(result.Errors) > 0 {
		issue := result.Errors[0]
		if issue.Path != "" {
			return fmt.Errorf("%s: %s", issue.Path, issue.Message)
		}
		return fmt.Errorf("%s", issue.Message)
	}
	return nil
}

// ValidateFile loads a config file and reports every issue found, for the
// -validate CLI flag.
func ValidateFile(path string) (*ValidationResult, error) {
	cfg, err := Load(path)
	if err != nil {
		// Load already failed on the first error; surface it as the result
		return &ValidationResult{Errors: []ValidationIssue{{Message: err.Error()}}}, nil
	}
	return validate(&cfg), nil
}

func validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}
	addError := func(path, format string, args ...any) {
		result.Errors = append(result.Errors, ValidationIssue{
			Path:    path,
			Message: fmt.Sprintf(format, args...),
		})
	}
	addWarning := func(path, format string, args ...any) {
		result.Warnings = append(result.Warnings, ValidationIssue{
			Path:    path,
			Message: fmt.Sprintf(format, args...),
		})
	}

	// SecretRaw stays nil when the file carries no cookie secret, even
	// after a random one is generated at load time
	if cfg.Cookie.SecretRaw == nil {
		addWarning("cookie.secret", "not configured; a random secret is generated at startup and sessions will not survive restarts")
	}

	switch cfg.Provider.Provider {
	case ProviderTypeOIDC:
	default:
		addError("provider.provider", "unknown provider type: %q", cfg.Provider.Provider)
	}

	if cfg.Provider.ClientID == "" {
		addError("provider.clientId", "required field is missing")
	}
	if cfg.Provider.ClientSecret == "" {
		addError("provider.clientSecret", "required field is missing")
	}

	requiredURLs := []struct {
		path  string
		value string
	}{
		{"provider.authUrl", cfg.Provider.AuthURL},
		{"provider.tokenUrl", cfg.Provider.TokenURL},
		{"provider.userinfoUrl", cfg.Provider.UserinfoURL},
		{"provider.redirectUrl", cfg.Provider.RedirectURL},
	}
	for _, required := range requiredURLs {
		if required.value == "" {
			addError(required.path, "required field is missing")
			continue
		}
		if err := validateURL(required.value); err != nil {
			addError(required.path, "%v", err)
		}
	}
	if cfg.Provider.JWKSURL != "" {
		if err := validateURL(cfg.Provider.JWKSURL); err != nil {
			addError("provider.jwksUrl", "%v", err)
		}
	}

	if cfg.API != nil {
		switch cfg.API.API {
		case "", NotifierTypeRest:
		default:
			addError("api.api", "unknown api type: %q", cfg.API.API)
		}
		if cfg.API.IDTokenEndpoint != "" {
			if err := validateURL(cfg.API.IDTokenEndpoint); err != nil {
				addError("api.idTokenEndpoint", "%v", err)
			}
		}
	}

	if cfg.Cookie.AccessTokenName == cfg.Cookie.RefreshTokenName {
		addError("cookie", "accessTokenName and refreshTokenName must differ")
	}

	return result
}

func validateURL(value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must use http or https, got %q", value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL has no host: %q", value)
	}
	return nil
}
