package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Session represents an authenticated session with automatic token refresh.
// All Session methods handle access token expiry transparently.
type Session struct {
	client *Client

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// newSession creates an authenticated session from a token response.
func newSession(client *Client, resp TokenResponse) *Session {
	return &Session{
		client:       client,
		accessToken:  resp.AccessToken,
		refreshToken: resp.RefreshToken,
		expiresAt:    expiryFrom(resp),
	}
}

// expiryFrom computes the local refresh deadline, 30 seconds before the
// token actually expires.
func expiryFrom(resp TokenResponse) time.Time {
	return time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - 30*time.Second)
}

// RefreshToken returns the session's current refresh token, e.g. for
// persisting it across restarts. It changes on every refresh.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// AccessToken returns the session's current access token without refreshing.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// Logout revokes the session's refresh token. The access token stays valid
// until it expires; discard the Session after calling this.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.RLock()
	refreshToken := s.refreshToken
	s.mu.RUnlock()

	if refreshToken == "" {
		return fmt.Errorf("no refresh token to revoke")
	}
	return s.client.Logout(ctx, refreshToken)
}

// getValidToken returns a valid access token, refreshing it if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	return s.refresh(ctx)
}

// refresh rotates the refresh token and replaces both tokens. The lock is
// held across the request so concurrent callers cannot double-spend the
// refresh token; the service treats that as theft.
func (s *Session) refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	var resp TokenResponse
	err := s.client.doJSON(ctx, http.MethodPost, "/v1/auth/refresh", map[string]string{
		"refresh_token": s.refreshToken,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to refresh session: %w", err)
	}

	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	s.expiresAt = expiryFrom(resp)

	return s.accessToken, nil
}
