package authsdk

import "time"

// TokenResponse is returned by the login, step-up, and refresh endpoints.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`

	// StepUpRequired is set instead of tokens when the service wants
	// step-up verification. VerificationToken carries the proof-of-password
	// token for the step-up endpoint.
	StepUpRequired    bool   `json:"step_up_required,omitempty"`
	VerificationToken string `json:"verification_token,omitempty"`
}

// SessionInfo describes one active refresh session for an account.
type SessionInfo struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedByIP string     `json:"created_by_ip,omitempty"`
	UserAgent   string     `json:"user_agent,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	LastUsedIP  string     `json:"last_used_ip,omitempty"`
}

// BlockedIP describes one address on the service's block list.
type BlockedIP struct {
	IP           string    `json:"ip"`
	BlockedAt    time.Time `json:"blocked_at"`
	BlockedUntil time.Time `json:"blocked_until"`
	Reason       string    `json:"reason"`
}

// BlockIPRequest is the payload for manually blocking an address.
type BlockIPRequest struct {
	IP     string `json:"ip"`
	Reason string `json:"reason"`

	// Duration is a Go duration string (e.g. "2h"). Empty means the
	// service default.
	Duration string `json:"duration,omitempty"`
}

// SecurityEvent is the wire form of one audit log entry.
type SecurityEvent struct {
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

// SecurityStats aggregates the audit log over a time window.
type SecurityStats struct {
	Total          int `json:"total"`
	Failures       int `json:"failures"`
	Successes      int `json:"successes"`
	Lockouts       int `json:"lockouts"`
	TokenReuse     int `json:"token_reuse"`
	HighRisk       int `json:"high_risk"`
	AlertsRaised   int `json:"alerts_raised"`
	DistinctIPs    int `json:"distinct_ips"`
	DistinctEmails int `json:"distinct_emails"`
}

// HealthResponse is returned by the liveness and readiness probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks carries the per-dependency results of the readiness probe.
type HealthChecks struct {
	Database string `json:"database"`
}

// EnrollMFAResponse carries the otpauth:// provisioning URL for a fresh
// TOTP enrollment.
type EnrollMFAResponse struct {
	OTPAuthURL string `json:"otpauth_url"`
}
