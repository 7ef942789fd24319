package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// GetLiveness checks the liveness probe.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/livez", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetReadiness checks the readiness probe. A degraded service still returns
// a response; inspect Status and Checks rather than the error.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.send(ctx, http.MethodGet, "/readyz", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// The probe writes the same body on 200 and 503.
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &health, nil
}
