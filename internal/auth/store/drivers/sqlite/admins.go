package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/opswell/gatekeep/internal/auth/domain"
)

type adminsRepo struct {
	q queryer
}

const adminColumns = `
	id, kind, email, password_hash, tenant_id, tenant_slug, role, permissions,
	mfa_secret, disabled, failed_login_attempts, locked_until, last_login_at,
	last_login_ip, last_login_user_agent, tokens_invalidated_at, created_at, updated_at`

func (r *adminsRepo) GetAdminByID(ctx context.Context, id string) (domain.Admin, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT`+adminColumns+` FROM admins WHERE id = ?`, id)
	return scanAdmin(row)
}

func (r *adminsRepo) GetAdminByEmail(
	ctx context.Context,
	kind domain.AdminKind,
	email string,
) (domain.Admin, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT`+adminColumns+` FROM admins WHERE kind = ? AND email = ?`, string(kind), email)
	return scanAdmin(row)
}

func (r *adminsRepo) CreateAdmin(ctx context.Context, a domain.Admin) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO admins (
			id, kind, email, password_hash, tenant_id, tenant_slug, role,
			permissions, mfa_secret, disabled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		string(a.Kind),
		a.Email,
		a.PasswordHash,
		mapOptionalString(a.TenantID),
		a.TenantSlug,
		a.Role,
		joinList(a.Permissions),
		mapOptionalString(a.MFASecret),
		a.Disabled,
	)
	return err
}

func (r *adminsRepo) RecordLoginFailure(ctx context.Context, id string, lockUntil *time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE admins
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = COALESCE(?, locked_until),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		mapOptionalTime(lockUntil), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *adminsRepo) RecordLoginSuccess(ctx context.Context, id, ip, userAgent string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE admins
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    last_login_at = ?,
		    last_login_ip = ?,
		    last_login_user_agent = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		at, ip, userAgent, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *adminsRepo) SetTokensInvalidatedAt(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE admins
		SET tokens_invalidated_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *adminsRepo) UpdatePasswordHash(ctx context.Context, id, newHash string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE admins
		SET password_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		newHash, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *adminsRepo) SetMFASecret(ctx context.Context, id, secret string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE admins
		SET mfa_secret = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		secret, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdmin(row rowScanner) (domain.Admin, error) {
	var (
		a           domain.Admin
		kind        string
		tenantID    sql.NullString
		permissions string
		mfaSecret   sql.NullString
		lockedUntil sql.NullTime
		lastLogin   sql.NullTime
		invalidated sql.NullTime
	)

	err := row.Scan(
		&a.ID, &kind, &a.Email, &a.PasswordHash, &tenantID, &a.TenantSlug,
		&a.Role, &permissions, &mfaSecret, &a.Disabled, &a.FailedLoginAttempts,
		&lockedUntil, &lastLogin, &a.LastLoginIP, &a.LastLoginUserAgent,
		&invalidated, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Admin{}, mapNotFound(err)
	}

	a.Kind = domain.AdminKind(kind)
	a.TenantID = mapNullStringPtr(tenantID)
	a.Permissions = splitList(permissions)
	a.MFASecret = mapNullStringPtr(mfaSecret)
	a.LockedUntil = mapNullTimePtr(lockedUntil)
	a.LastLoginAt = mapNullTimePtr(lastLogin)
	a.TokensInvalidatedAt = mapNullTimePtr(invalidated)
	return a, nil
}
