package domain

import "time"

// EventKind enumerates the authentication-relevant events this subsystem
// records.
type EventKind string

const (
	EventLoginSuccess       EventKind = "login_success"
	EventLoginFailure       EventKind = "login_failure"
	EventAccountLockout     EventKind = "account_lockout"
	EventPasswordReset      EventKind = "password_reset"
	EventTokenReuse         EventKind = "token_reuse"
	EventBruteForce         EventKind = "brute_force_detected"
	EventSuspiciousIP       EventKind = "suspicious_ip"
	EventStepUpSuccess      EventKind = "step_up_success"
	EventStepUpFailure      EventKind = "step_up_failure"
	EventLogoutAll          EventKind = "logout_everywhere"
	EventAdminImpersonation EventKind = "admin_impersonation"
	EventIPBlocked          EventKind = "ip_blocked"
	EventIPUnblocked        EventKind = "ip_unblocked"
)

// RiskLevel is the per-event risk classification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// AtLeast reports whether l is at or above the given level.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.rank() >= other.rank()
}

func (l RiskLevel) rank() int {
	switch l {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// SecurityEvent is one append-only record in the security log. Events are
// never mutated after insert except for the alert flag, which is decided
// synchronously with creation.
type SecurityEvent struct {
	ID   string
	Kind EventKind

	// Actor identity; nullable, failed logins may be anonymous.
	UserID   *string
	Email    string
	TenantID *string

	IP                string
	UserAgent         string
	DeviceFingerprint string

	Success bool
	Detail  string

	RiskLevel      RiskLevel
	AlertTriggered bool

	CreatedAt time.Time
}

// RiskAssessment is the composite result of scoring one login attempt.
type RiskAssessment struct {
	Level   RiskLevel
	Score   int
	Factors []string

	FirstLogin   bool
	NewIP        bool
	NewDevice    bool
	SuspiciousIP bool
	BruteForce   bool
	UnusualTime  bool

	// RequiresStepUp is set when the level reaches Medium; the caller should
	// demand a second factor before honouring the session.
	RequiresStepUp bool
}

// SecurityStats aggregates the event log over a time window.
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
