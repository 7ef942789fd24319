package domain

import "time"

// AdminKind separates the two credentialed populations. They live in the
// same table but never share sessions, refresh tokens, or audiences.
type AdminKind string

const (
	AdminKindTenant   AdminKind = "tenant-admin"
	AdminKindPlatform AdminKind = "platform-admin"
)

// Admin is a credentialed account: a tenant administrator or a platform
// operator. Tenant CRUD owns most of the entity; this subsystem mutates only
// the login-attempt state and the invalidation stamp.
type Admin struct {
	ID           string
	Kind         AdminKind
	Email        string
	PasswordHash string // argon2id encoded
	TenantID     *string

	// Tenant-admin session extras.
	TenantSlug string
	Role       string

	// Platform-admin session extras.
	Permissions []string

	// TOTP secret for step-up verification (nullable, base32 encoded).
	MFASecret *string

	Disabled bool

	// Login attempt state, mutated by the login orchestrator.
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	LastLoginIP         string
	LastLoginUserAgent  string

	// TokensInvalidatedAt retroactively invalidates every refresh token
	// created before this instant ("log out everywhere").
	TokensInvalidatedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LockedOut reports whether the account is under an active lockout.
func (a Admin) LockedOut(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}
