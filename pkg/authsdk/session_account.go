package authsdk

import (
	"context"
	"net/http"
)

// LogoutAll revokes every refresh session for the account and invalidates
// any outstanding refresh tokens globally. This session's refresh token is
// dead afterwards.
func (s *Session) LogoutAll(ctx context.Context) error {
	return s.doAuthJSON(ctx, http.MethodPost, "/v1/account/logout-all", nil, nil)
}

// ChangePassword changes the account password. Every other session is
// revoked as a side effect; this session's refresh token is dead afterwards.
func (s *Session) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	return s.doAuthJSON(ctx, http.MethodPost, "/v1/account/password", map[string]string{
		"current_password": currentPassword,
		"new_password":     newPassword,
	}, nil)
}

// EnrollMFA provisions a TOTP secret for the account and returns the
// otpauth:// URL for the authenticator app.
func (s *Session) EnrollMFA(ctx context.Context) (*EnrollMFAResponse, error) {
	var resp EnrollMFAResponse
	if err := s.doAuthJSON(ctx, http.MethodPost, "/v1/account/mfa/enroll", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSessions lists the account's active refresh sessions.
func (s *Session) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	var resp struct {
		Sessions []SessionInfo `json:"sessions"`
	}
	if err := s.doAuthJSON(ctx, http.MethodGet, "/v1/account/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}
