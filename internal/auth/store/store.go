package store

import (
	"context"
	"errors"
	"time"

	"github.com/opswell/gatekeep/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today,
// postgres later) implement it. Sub-repositories keep concerns tidy and let
// the transaction wrapper reuse the same interfaces.
type Store interface {
	Admins() Admins
	RefreshTokens() RefreshTokens
	SecurityEvents() SecurityEvents

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store. The
	// caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing on nil and rolling
	// back on error. Use it for multi-step operations that must be atomic,
	// e.g. refresh rotation.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Admins interface {
	// GetAdminByID returns an admin by id.
	GetAdminByID(ctx context.Context, id string) (domain.Admin, error)

	// GetAdminByEmail is the login lookup; email is unique per kind.
	GetAdminByEmail(ctx context.Context, kind domain.AdminKind, email string) (domain.Admin, error)

	// CreateAdmin inserts a new admin (id is provided by the app via ULID).
	CreateAdmin(ctx context.Context, a domain.Admin) error

	// RecordLoginFailure bumps the failed-attempt counter and, when lockUntil
	// is non-nil, stamps the lockout.
	RecordLoginFailure(ctx context.Context, id string, lockUntil *time.Time) error

	// RecordLoginSuccess resets the failure counter and records the last
	// successful login context.
	RecordLoginSuccess(ctx context.Context, id, ip, userAgent string, at time.Time) error

	// SetTokensInvalidatedAt stamps the global invalidation instant used to
	// retroactively reject earlier refresh tokens.
	SetTokensInvalidatedAt(ctx context.Context, id string, at time.Time) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, id, newHash string) error

	// SetMFASecret stores the TOTP secret used for step-up verification.
	SetMFASecret(ctx context.Context, id, secret string) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its SHA-256 fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// GetRefreshTokenByID returns the token by id.
	GetRefreshTokenByID(ctx context.Context, id string) (domain.RefreshToken, error)

	// GetPredecessor returns the token whose replaced_by points at id, i.e.
	// the previous link of the rotation chain.
	GetPredecessor(ctx context.Context, id string) (domain.RefreshToken, error)

	// MarkRotated atomically revokes an active token with reason "rotated",
	// links it to its successor, and stamps last use. Returns ErrNotFound
	// when the token is no longer active, so a losing concurrent rotation
	// fails closed instead of creating a second successor.
	MarkRotated(ctx context.Context, id, replacedByID, lastUsedIP string, at time.Time) error

	// RevokeRefreshToken revokes a single token with the given reason. A
	// no-op for already revoked tokens.
	RevokeRefreshToken(ctx context.Context, id, reason string, at time.Time) error

	// RevokeAllForUser revokes every active token for a user+kind pair.
	RevokeAllForUser(ctx context.Context, userID string, kind domain.AdminKind, reason string, at time.Time) error

	// ListActiveForUser returns the non-revoked, non-expired tokens for a
	// user+kind pair, oldest first.
	ListActiveForUser(ctx context.Context, userID string, kind domain.AdminKind, now time.Time) ([]domain.RefreshToken, error)

	// CountActiveForUser is ListActiveForUser without the rows.
	CountActiveForUser(ctx context.Context, userID string, kind domain.AdminKind, now time.Time) (int, error)

	// DeleteRetired hard-deletes tokens that expired or were revoked before
	// the cutoff. Records inside the retention window stay for audit.
	DeleteRetired(ctx context.Context, cutoff time.Time) (int64, error)
}

type SecurityEvents interface {
	// InsertSecurityEvent appends one event. Events are never updated.
	InsertSecurityEvent(ctx context.Context, e domain.SecurityEvent) error

	// CountFailedLoginsByIP counts login_failure events from ip since the
	// given instant.
	CountFailedLoginsByIP(ctx context.Context, ip string, since time.Time) (int, error)

	// CountFailedLoginsByEmail counts login_failure events for email since
	// the given instant.
	CountFailedLoginsByEmail(ctx context.Context, email string, since time.Time) (int, error)

	// CountDistinctEmailsByIP counts distinct emails attempted from ip since
	// the given instant, successes included (credential-stuffing signature).
	CountDistinctEmailsByIP(ctx context.Context, ip string, since time.Time) (int, error)

	// GetLastSuccessfulLogin returns the most recent login_success event for
	// email, or ErrNotFound when the account has never logged in.
	GetLastSuccessfulLogin(ctx context.Context, email string) (domain.SecurityEvent, error)

	// ListRecentForUser returns the newest events for a user, newest first.
	ListRecentForUser(ctx context.Context, userID string, limit int) ([]domain.SecurityEvent, error)

	// AggregateStats computes window aggregates, optionally tenant-scoped.
	AggregateStats(ctx context.Context, from, to time.Time, tenantID *string) (domain.SecurityStats, error)

	// DeleteEventsBefore prunes events older than the cutoff.
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
