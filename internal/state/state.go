package state

import (
	"encoding/json"

	"github.com/authfront/auth-front/internal/crypto"
)

// Redirect is the payload carried through the OAuth state parameter: the
// destination the user asked for before being sent to the provider.
type Redirect struct {
	URL string `json:"url,omitempty"`
}

// Codec encrypts the redirect payload into the opaque state token and
// back. Because only the gateway can mint a token that decrypts, a forged
// callback cannot steer the post-login redirect; a missing or invalid
// state merely lands the user on "/" and is never a hard failure.
type Codec struct {
	engine *crypto.Engine
}

// NewCodec creates a codec keyed by the given secret.
func NewCodec(secret string) *Codec {
	return &Codec{engine: crypto.NewEngine(secret)}
}

// Serialize encrypts the redirect payload into a state token.
func (c *Codec) Serialize(redirect Redirect) (string, error) {
	payload, err := json.Marshal(redirect)
	if err != nil {
		return "", err
	}
	return c.engine.Encrypt(string(payload))
}

// Parse decrypts a state token, returning nil on any failure.
func (c *Codec) Parse(token string) *Redirect {
	if token == "" {
		return nil
	}
	payload, err := c.engine.Decrypt(token)
	if err != nil {
		return nil
	}
	var redirect Redirect
	if err := json.Unmarshal([]byte(payload), &redirect); err != nil {
		return nil
	}
	return &redirect
}
