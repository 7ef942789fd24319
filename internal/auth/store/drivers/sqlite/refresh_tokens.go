package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/opswell/gatekeep/internal/auth/domain"
)

type refreshTokensRepo struct {
	q queryer
}

const refreshTokenColumns = `
	id, owner_kind, user_id, tenant_id, token_hash, created_by_ip, user_agent,
	device_fingerprint, expires_at, revoked, revoked_reason, revoked_at,
	replaced_by, last_used_at, last_used_ip, created_at, updated_at`

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	// created_at is written explicitly; CURRENT_TIMESTAMP only has second
	// resolution and the oldest-first session cap needs a stable order.
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO refresh_tokens (
			id, owner_kind, user_id, tenant_id, token_hash, created_by_ip,
			user_agent, device_fingerprint, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		string(t.OwnerKind),
		t.UserID,
		mapOptionalString(t.TenantID),
		t.TokenHash,
		t.CreatedByIP,
		t.UserAgent,
		t.DeviceFingerprint,
		t.ExpiresAt,
		t.CreatedAt,
		t.CreatedAt,
	)
	return err
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT`+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, hash)
	return scanRefreshToken(row)
}

func (r *refreshTokensRepo) GetRefreshTokenByID(ctx context.Context, id string) (domain.RefreshToken, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT`+refreshTokenColumns+` FROM refresh_tokens WHERE id = ?`, id)
	return scanRefreshToken(row)
}

func (r *refreshTokensRepo) GetPredecessor(ctx context.Context, id string) (domain.RefreshToken, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT`+refreshTokenColumns+` FROM refresh_tokens WHERE replaced_by = ?`, id)
	return scanRefreshToken(row)
}

// MarkRotated is guarded by "AND revoked = 0" so that two concurrent
// rotations of the same token cannot both succeed; the loser sees
// ErrNotFound and must treat the exchange as failed.
func (r *refreshTokensRepo) MarkRotated(ctx context.Context, id, replacedByID, lastUsedIP string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1,
		    revoked_reason = ?,
		    revoked_at = ?,
		    replaced_by = ?,
		    last_used_at = ?,
		    last_used_ip = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND revoked = 0`,
		domain.RevokedReasonRotated, at, replacedByID, at, lastUsedIP, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, id, reason string, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1,
		    revoked_reason = ?,
		    revoked_at = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND revoked = 0`,
		reason, at, id)
	return err
}

func (r *refreshTokensRepo) RevokeAllForUser(
	ctx context.Context,
	userID string,
	kind domain.AdminKind,
	reason string,
	at time.Time,
) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1,
		    revoked_reason = ?,
		    revoked_at = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND owner_kind = ? AND revoked = 0`,
		reason, at, userID, string(kind))
	return err
}

func (r *refreshTokensRepo) ListActiveForUser(
	ctx context.Context,
	userID string,
	kind domain.AdminKind,
	now time.Time,
) ([]domain.RefreshToken, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT`+refreshTokenColumns+`
		FROM refresh_tokens
		WHERE user_id = ? AND owner_kind = ? AND revoked = 0 AND expires_at > ?
		ORDER BY created_at ASC, id ASC`,
		userID, string(kind), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *refreshTokensRepo) CountActiveForUser(
	ctx context.Context,
	userID string,
	kind domain.AdminKind,
	now time.Time,
) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM refresh_tokens
		WHERE user_id = ? AND owner_kind = ? AND revoked = 0 AND expires_at > ?`,
		userID, string(kind), now).Scan(&n)
	return n, err
}

func (r *refreshTokensRepo) DeleteRetired(ctx context.Context, cutoff time.Time) (int64, error) {
	// Successors reference their predecessors, so clear the back-links first
	// or the self-FK blocks the delete.
	_, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET replaced_by = NULL
		WHERE replaced_by IN (
			SELECT id FROM refresh_tokens
			WHERE expires_at < ? OR (revoked = 1 AND revoked_at < ?)
		)`,
		cutoff, cutoff)
	if err != nil {
		return 0, err
	}

	res, err := r.q.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE expires_at < ? OR (revoked = 1 AND revoked_at < ?)`,
		cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRefreshToken(row rowScanner) (domain.RefreshToken, error) {
	var (
		t          domain.RefreshToken
		ownerKind  string
		tenantID   sql.NullString
		revokedAt  sql.NullTime
		replacedBy sql.NullString
		lastUsedAt sql.NullTime
	)

	err := row.Scan(
		&t.ID, &ownerKind, &t.UserID, &tenantID, &t.TokenHash, &t.CreatedByIP,
		&t.UserAgent, &t.DeviceFingerprint, &t.ExpiresAt, &t.Revoked,
		&t.RevokedReason, &revokedAt, &replacedBy, &lastUsedAt, &t.LastUsedIP,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}

	t.OwnerKind = domain.AdminKind(ownerKind)
	t.TenantID = mapNullStringPtr(tenantID)
	t.RevokedAt = mapNullTimePtr(revokedAt)
	t.ReplacedBy = mapNullStringPtr(replacedBy)
	t.LastUsedAt = mapNullTimePtr(lastUsedAt)
	return t, nil
}
