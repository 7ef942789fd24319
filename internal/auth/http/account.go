package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/opswell/gatekeep/internal/auth/domain"
	"github.com/opswell/gatekeep/internal/auth/service"
	"github.com/opswell/gatekeep/pkg/httpx"
)

type AccountHandler struct {
	LoginService *service.LoginService
	TokenService *service.RefreshTokenService
}

// callerIdentity resolves the authenticated subject and kind from claims.
func callerIdentity(r *http.Request) (string, domain.AdminKind) {
	claims := httpx.ClaimsFromCtx(r.Context())
	return claims.Subject, domain.AdminKind(claims.OwnerKind)
}

func (h *AccountHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, kind := callerIdentity(r)

	if err := h.LoginService.LogoutEverywhere(r.Context(), userID, kind, clientContext(r)); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := callerIdentity(r)

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "current_password and new_password are required")
		return
	}

	err := h.LoginService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword, clientContext(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "authentication failed")
		case errors.Is(err, service.ErrWeakPassword):
			httpx.WriteError(w, http.StatusBadRequest, "weak_password", err.Error())
		default:
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		}
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type enrollMFAResponse struct {
	OTPAuthURL string `json:"otpauth_url"`
}

func (h *AccountHandler) HandleEnrollMFA(w http.ResponseWriter, r *http.Request) {
	userID, _ := callerIdentity(r)

	url, err := h.LoginService.EnrollMFA(r.Context(), userID, "gatekeep")
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, enrollMFAResponse{OTPAuthURL: url})
}

// sessionInfo is the client view of an active session. Token hashes stay
// server-side.
type sessionInfo struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedByIP string     `json:"created_by_ip,omitempty"`
	UserAgent   string     `json:"user_agent,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	LastUsedIP  string     `json:"last_used_ip,omitempty"`
}

func (h *AccountHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	userID, kind := callerIdentity(r)

	tokens, err := h.TokenService.ListActive(r.Context(), userID, kind)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}

	sessions := make([]sessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, sessionInfo{
			ID:          t.ID,
			CreatedAt:   t.CreatedAt,
			ExpiresAt:   t.ExpiresAt,
			CreatedByIP: t.CreatedByIP,
			UserAgent:   t.UserAgent,
			LastUsedAt:  t.LastUsedAt,
			LastUsedIP:  t.LastUsedIP,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}
