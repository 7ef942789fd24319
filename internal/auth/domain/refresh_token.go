package domain

import "time"

// Revocation reasons. Stored verbatim so audit queries can distinguish a
// routine rotation from a breach response.
const (
	RevokedReasonRotated       = "rotated"
	RevokedReasonReuseDetected = "reuse detected"
	RevokedReasonMaxSessions   = "max active sessions exceeded"
	RevokedReasonInvalidated   = "invalidated by user"
	RevokedReasonLogout        = "logged out"
	RevokedReasonLogoutAll     = "logout everywhere"
	RevokedReasonAdmin         = "revoked by administrator"
)

// RefreshToken models the stored refresh token record. Only the SHA-256
// fingerprint of the opaque secret is persisted; the plaintext exists once,
// in the response that minted it.
//
// Rotation links records into a family: a singly-linked forward chain via
// ReplacedBy, never a tree. At most one active token may ever gain a
// successor.
type RefreshToken struct {
	ID        string
	OwnerKind AdminKind
	UserID    string
	TenantID  *string
	TokenHash string

	// Client context captured at mint time.
	CreatedByIP       string
	UserAgent         string
	DeviceFingerprint string

	ExpiresAt time.Time

	Revoked       bool
	RevokedReason string
	RevokedAt     *time.Time

	// ReplacedBy is the ID of the successor minted when this token was
	// rotated. Nil for the live tip of the chain.
	ReplacedBy *string

	LastUsedAt *time.Time
	LastUsedIP string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the token may still be exchanged: not revoked and
// not expired. Expiry is a validity predicate, not a stored state.
func (t RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// TokenPair is what a successful login or rotation returns: the short-lived
// access JWT and the opaque refresh token.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    int64         `json:"expires_in"`           // access token lifetime in seconds
}
