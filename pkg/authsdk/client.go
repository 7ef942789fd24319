package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the gatekeep authentication service. It provides
// access to unauthenticated operations and can create authenticated Sessions.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// DeviceFingerprint, when set, is sent with every credential request so
	// the service can factor device recognition into its risk assessment.
	DeviceFingerprint string
}

// NewClient creates a new gatekeep service client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login authenticates a tenant administrator and returns an authenticated
// session. When the service demands step-up verification it returns a
// *StepUpRequiredError instead; complete the flow with CompleteStepUp.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	return c.login(ctx, "/v1/auth/login", email, password)
}

// PlatformLogin authenticates a platform administrator.
func (c *Client) PlatformLogin(ctx context.Context, email, password string) (*Session, error) {
	return c.login(ctx, "/v1/auth/platform/login", email, password)
}

func (c *Client) login(ctx context.Context, path, email, password string) (*Session, error) {
	var resp TokenResponse
	err := c.doJSON(ctx, http.MethodPost, path, map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.StepUpRequired {
		return nil, &StepUpRequiredError{VerificationToken: resp.VerificationToken}
	}
	return newSession(c, resp), nil
}

// CompleteStepUp finishes a step-up login with a TOTP code and the
// verification token Login handed back.
func (c *Client) CompleteStepUp(ctx context.Context, verificationToken, code string) (*Session, error) {
	var resp TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/step-up", map[string]string{
		"verification_token": verificationToken,
		"code":               code,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return newSession(c, resp), nil
}

// Refresh exchanges a refresh token for a fresh token pair. Most callers
// should use a Session, which does this automatically; Refresh exists for
// resuming a session from stored tokens.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var resp TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// NewSessionFromRefreshToken resumes a session from a stored refresh token.
func (c *Client) NewSessionFromRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	resp, err := c.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return newSession(c, *resp), nil
}

// Logout revokes a single refresh token.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/auth/logout", map[string]string{
		"refresh_token": refreshToken,
	}, nil)
}
