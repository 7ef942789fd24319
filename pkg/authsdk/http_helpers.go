package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// url builds a complete URL by appending the path to the base URL.
func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// doJSON performs an unauthenticated JSON request. A nil out discards the
// response body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body, "")
	if err != nil {
		return err
	}
	return consume(resp, out)
}

// doAuthJSON performs an authenticated JSON request with the session's
// access token, refreshing it first if it has expired.
func (s *Session) doAuthJSON(ctx context.Context, method, path string, body, out any) error {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return err
	}

	resp, err := s.client.send(ctx, method, path, body, token)
	if err != nil {
		return err
	}
	return consume(resp, out)
}

func (c *Client) send(ctx context.Context, method, path string, body any, bearer string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if c.DeviceFingerprint != "" {
		req.Header.Set("X-Device-Fingerprint", c.DeviceFingerprint)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// consume decodes a JSON response into out, translating non-2xx responses
// into *APIError. It always closes the body.
func consume(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
