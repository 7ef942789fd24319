package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// The security surface requires a platform administrator session holding
// the security:read or security:write permission.

// ListBlockedIPs lists every currently blocked address.
func (s *Session) ListBlockedIPs(ctx context.Context) ([]BlockedIP, error) {
	var resp struct {
		Blocked []BlockedIP `json:"blocked"`
	}
	if err := s.doAuthJSON(ctx, http.MethodGet, "/v1/security/ips", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Blocked, nil
}

// BlockIP manually blocks an address.
func (s *Session) BlockIP(ctx context.Context, req BlockIPRequest) error {
	return s.doAuthJSON(ctx, http.MethodPost, "/v1/security/ips/block", req, nil)
}

// UnblockIP removes a block. Unblocking an address that is not blocked
// returns an *APIError with code "not_found".
func (s *Session) UnblockIP(ctx context.Context, ip string) error {
	path := "/v1/security/ips/" + url.PathEscape(ip)
	return s.doAuthJSON(ctx, http.MethodDelete, path, nil, nil)
}

// ListSecurityEvents returns the most recent audit events for one account,
// newest first. A limit of 0 uses the service default.
func (s *Session) ListSecurityEvents(ctx context.Context, userID string, limit int) ([]SecurityEvent, error) {
	path := "/v1/security/events/" + url.PathEscape(userID)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var resp struct {
		Events []SecurityEvent `json:"events"`
	}
	if err := s.doAuthJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// GetSecurityStats aggregates the audit log between from and to, optionally
// scoped to one tenant.
func (s *Session) GetSecurityStats(ctx context.Context, from, to time.Time, tenantID *string) (*SecurityStats, error) {
	q := url.Values{}
	q.Set("from", from.Format(time.RFC3339))
	q.Set("to", to.Format(time.RFC3339))
	if tenantID != nil {
		q.Set("tenant_id", *tenantID)
	}
	path := fmt.Sprintf("/v1/security/stats?%s", q.Encode())

	var stats SecurityStats
	if err := s.doAuthJSON(ctx, http.MethodGet, path, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
