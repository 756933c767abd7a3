package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Rest posts ID-token claims as JSON to a configured endpoint.
type Rest struct {
	endpoint      string
	authorization string
	httpClient    *http.Client
}

// NewRest creates a REST notifier. authorization, when non-empty, is sent
// as a bearer token on every call.
func NewRest(endpoint, authorization string) *Rest {
	return &Rest{
		endpoint:      endpoint,
		authorization: authorization,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

// OnIDToken posts the claims to the downstream endpoint.
func (n *Rest) OnIDToken(ctx context.Context, claims map[string]any) error {
	payload, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("marshaling ID token claims: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.authorization != "" {
		req.Header.Set("Authorization", "Bearer "+n.authorization)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notifying ID token endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ID token endpoint returned status %d: %s", resp.StatusCode, body)
	}
	return nil
}
