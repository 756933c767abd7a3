package notifier

import (
	"context"
	"fmt"

	"github.com/authfront/auth-front/internal/config"
)

// Notifier forwards freshly obtained ID-token claims to a downstream
// system. The call is best-effort: the gateway awaits it so failures can
// be observed, but a failure never changes the authentication outcome.
type Notifier interface {
	OnIDToken(ctx context.Context, claims map[string]any) error
}

// Noop is the notifier used when no downstream API is configured.
type Noop struct{}

// OnIDToken does nothing.
func (Noop) OnIDToken(context.Context, map[string]any) error { return nil }

// New creates a Notifier from the configured discriminator. A nil or
// empty configuration yields the no-op notifier, never a nil interface.
func New(cfg *config.NotifierConfig) (Notifier, error) {
	if cfg == nil {
		return Noop{}, nil
	}
	switch cfg.API {
	case "":
		return Noop{}, nil
	case config.NotifierTypeRest:
		if cfg.IDTokenEndpoint == "" {
			return Noop{}, nil
		}
		return NewRest(cfg.IDTokenEndpoint, string(cfg.Authorization)), nil
	default:
		return nil, fmt.Errorf("unknown api type: %q", cfg.API)
	}
}
