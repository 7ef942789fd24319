package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opswell/gatekeep/internal/auth/domain"
	"github.com/opswell/gatekeep/internal/auth/service"
	"github.com/opswell/gatekeep/pkg/httpx"
)

// clientContext captures the request's client metadata for the services.
func clientContext(r *http.Request) service.ClientContext {
	return service.ClientContext{
		IP:                httpx.IPKeyExtractor(r),
		UserAgent:         r.UserAgent(),
		DeviceFingerprint: r.Header.Get("X-Device-Fingerprint"),
	}
}

// writeLoginError collapses every login-path failure into one response.
// Lockout, disabled accounts, blocked IPs, and plain bad credentials must be
// indistinguishable from outside.
func writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrAccountLocked),
		errors.Is(err, service.ErrAccountDisabled),
		errors.Is(err, service.ErrLoginRejected),
		errors.Is(err, service.ErrStepUpFailed):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "authentication failed")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	*domain.TokenPair

	StepUpRequired    bool   `json:"step_up_required,omitempty"`
	VerificationToken string `json:"verification_token,omitempty"`
}

type LoginHandler struct {
	LoginService *service.LoginService
}

func (h *LoginHandler) HandleTenant(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.AdminKindTenant)
}

func (h *LoginHandler) HandlePlatform(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.AdminKindPlatform)
}

func (h *LoginHandler) handle(w http.ResponseWriter, r *http.Request, kind domain.AdminKind) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	res, err := h.LoginService.Login(r.Context(), kind, req.Email, req.Password, clientContext(r))
	if err != nil {
		writeLoginError(w, err)
		return
	}

	if res.StepUpRequired {
		httpx.WriteJSON(w, http.StatusOK, loginResponse{
			StepUpRequired:    true,
			VerificationToken: res.VerificationToken,
		})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse{TokenPair: res.Tokens})
}

type stepUpRequest struct {
	VerificationToken string `json:"verification_token"`
	Code              string `json:"code"`
}

type StepUpHandler struct {
	LoginService *service.LoginService
}

func (h *StepUpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req stepUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VerificationToken == "" || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "verification_token and code are required")
		return
	}

	res, err := h.LoginService.CompleteStepUp(r.Context(), req.VerificationToken, req.Code, clientContext(r))
	if err != nil {
		writeLoginError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse{TokenPair: res.Tokens})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshHandler struct {
	LoginService *service.LoginService
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	pair, err := h.LoginService.Refresh(r.Context(), req.RefreshToken, clientContext(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRefresh),
			errors.Is(err, service.ErrTokenReused),
			errors.Is(err, service.ErrAccountDisabled):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "refresh token is not valid")
		default:
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		}
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

type LogoutHandler struct {
	TokenService *service.RefreshTokenService
}

// ServeHTTP revokes a single refresh token. It always responds 200: whether
// the token existed is not the caller's business.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	if err := h.TokenService.Revoke(r.Context(), req.RefreshToken, domain.RevokedReasonLogout); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
