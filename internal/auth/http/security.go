package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/opswell/gatekeep/internal/auth/domain"
	"github.com/opswell/gatekeep/internal/auth/ipguard"
	"github.com/opswell/gatekeep/internal/auth/service"
	"github.com/opswell/gatekeep/pkg/httpx"
)

type IPAdminHandler struct {
	IPGuard         ipguard.Cache
	SecurityService *service.SecurityService
}

func (h *IPAdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.IPGuard.ListBlocked(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"blocked": blocked})
}

type blockIPRequest struct {
	IP       string `json:"ip"`
	Reason   string `json:"reason"`
	Duration string `json:"duration,omitempty"`
}

func (h *IPAdminHandler) HandleBlock(w http.ResponseWriter, r *http.Request) {
	var req blockIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IP == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "ip is required")
		return
	}
	if _, err := netip.ParseAddr(req.IP); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "ip is not a valid address")
		return
	}

	d := time.Hour
	if req.Duration != "" {
		parsed, err := time.ParseDuration(req.Duration)
		if err != nil || parsed <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "duration is not valid")
			return
		}
		d = parsed
	}

	reason := req.Reason
	if reason == "" {
		reason = "blocked by administrator"
	}

	if err := h.IPGuard.Block(r.Context(), req.IP, reason, d); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}

	adminID := httpx.UserIDFromCtx(r.Context())
	h.logIPEvent(r, domain.EventIPBlocked, req.IP, reason, adminID)

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *IPAdminHandler) HandleUnblock(w http.ResponseWriter, r *http.Request) {
	ip := r.PathValue("ip")
	if _, err := netip.ParseAddr(ip); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "ip is not a valid address")
		return
	}

	if err := h.IPGuard.Unblock(r.Context(), ip); err != nil {
		if errors.Is(err, ipguard.ErrNotBlocked) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "ip is not blocked")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}

	adminID := httpx.UserIDFromCtx(r.Context())
	h.logIPEvent(r, domain.EventIPUnblocked, ip, "unblocked by administrator", adminID)

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *IPAdminHandler) logIPEvent(r *http.Request, kind domain.EventKind, ip, detail, adminID string) {
	e := domain.SecurityEvent{
		Kind:    kind,
		IP:      ip,
		Success: true,
		Detail:  detail,
	}
	if adminID != "" {
		e.UserID = &adminID
	}
	// Best effort; LogEvent handles its own alerting.
	_, _ = h.SecurityService.LogEvent(r.Context(), e)
}

type EventsHandler struct {
	SecurityService *service.SecurityService
}

func (h *EventsHandler) HandleListForUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.SecurityService.RecentEvents(r.Context(), userID, limit)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}

	out := make([]eventInfo, 0, len(events))
	for _, e := range events {
		out = append(out, eventInfoFrom(e))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (h *EventsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	to := time.Now()
	from := to.Add(-24 * time.Hour)
	if s := q.Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "from must be RFC 3339")
			return
		}
		from = t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "to must be RFC 3339")
			return
		}
		to = t
	}

	var tenantID *string
	if s := q.Get("tenant_id"); s != "" {
		tenantID = &s
	}

	stats, err := h.SecurityService.Statistics(r.Context(), from, to, tenantID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

// eventInfo is the wire form of a security event.
type eventInfo struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Email     string    `json:"email,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail,omitempty"`
	RiskLevel string    `json:"risk_level"`
	Alerted   bool      `json:"alerted"`
	CreatedAt time.Time `json:"created_at"`
}

func eventInfoFrom(e domain.SecurityEvent) eventInfo {
	return eventInfo{
		ID:        e.ID,
		Kind:      string(e.Kind),
		Email:     e.Email,
		IP:        e.IP,
		Success:   e.Success,
		Detail:    e.Detail,
		RiskLevel: string(e.RiskLevel),
		Alerted:   e.AlertTriggered,
		CreatedAt: e.CreatedAt,
	}
}
