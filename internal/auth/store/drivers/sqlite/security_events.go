package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/opswell/gatekeep/internal/auth/domain"
)

type securityEventsRepo struct {
	q queryer
}

const securityEventColumns = `
	id, kind, user_id, email, tenant_id, ip, user_agent, device_fingerprint,
	success, detail, risk_level, alert_triggered, created_at`

func (r *securityEventsRepo) InsertSecurityEvent(ctx context.Context, e domain.SecurityEvent) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO security_events (
			id, kind, user_id, email, tenant_id, ip, user_agent,
			device_fingerprint, success, detail, risk_level, alert_triggered,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		string(e.Kind),
		mapOptionalString(e.UserID),
		e.Email,
		mapOptionalString(e.TenantID),
		e.IP,
		e.UserAgent,
		e.DeviceFingerprint,
		e.Success,
		e.Detail,
		string(e.RiskLevel),
		e.AlertTriggered,
		e.CreatedAt,
	)
	return err
}

func (r *securityEventsRepo) CountFailedLoginsByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM security_events
		WHERE kind = ? AND ip = ? AND created_at >= ?`,
		string(domain.EventLoginFailure), ip, since).Scan(&n)
	return n, err
}

func (r *securityEventsRepo) CountFailedLoginsByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM security_events
		WHERE kind = ? AND email = ? AND created_at >= ?`,
		string(domain.EventLoginFailure), email, since).Scan(&n)
	return n, err
}

func (r *securityEventsRepo) CountDistinctEmailsByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT email)
		FROM security_events
		WHERE kind IN (?, ?) AND ip = ? AND email != '' AND created_at >= ?`,
		string(domain.EventLoginFailure), string(domain.EventLoginSuccess), ip, since).Scan(&n)
	return n, err
}

func (r *securityEventsRepo) GetLastSuccessfulLogin(ctx context.Context, email string) (domain.SecurityEvent, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT`+securityEventColumns+`
		FROM security_events
		WHERE kind = ? AND email = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		string(domain.EventLoginSuccess), email)
	return scanSecurityEvent(row)
}

func (r *securityEventsRepo) ListRecentForUser(ctx context.Context, userID string, limit int) ([]domain.SecurityEvent, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT`+securityEventColumns+`
		FROM security_events
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.SecurityEvent
	for rows.Next() {
		e, err := scanSecurityEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *securityEventsRepo) AggregateStats(
	ctx context.Context,
	from, to time.Time,
	tenantID *string,
) (domain.SecurityStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN risk_level = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN alert_triggered = 1 THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT CASE WHEN ip != '' THEN ip END),
			COUNT(DISTINCT CASE WHEN email != '' THEN email END)
		FROM security_events
		WHERE created_at >= ? AND created_at < ?`

	args := []any{
		string(domain.EventLoginFailure),
		string(domain.EventLoginSuccess),
		string(domain.EventAccountLockout),
		string(domain.EventTokenReuse),
		string(domain.RiskHigh),
		from, to,
	}
	if tenantID != nil {
		query += ` AND tenant_id = ?`
		args = append(args, *tenantID)
	}

	var stats domain.SecurityStats
	err := r.q.QueryRowContext(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Failures,
		&stats.Successes,
		&stats.Lockouts,
		&stats.TokenReuse,
		&stats.HighRisk,
		&stats.AlertsRaised,
		&stats.DistinctIPs,
		&stats.DistinctEmails,
	)
	return stats, err
}

func (r *securityEventsRepo) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM security_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSecurityEvent(row rowScanner) (domain.SecurityEvent, error) {
	var (
		e         domain.SecurityEvent
		kind      string
		userID    sql.NullString
		tenantID  sql.NullString
		riskLevel string
	)

	err := row.Scan(
		&e.ID, &kind, &userID, &e.Email, &tenantID, &e.IP, &e.UserAgent,
		&e.DeviceFingerprint, &e.Success, &e.Detail, &riskLevel,
		&e.AlertTriggered, &e.CreatedAt,
	)
	if err != nil {
		return domain.SecurityEvent{}, mapNotFound(err)
	}

	e.Kind = domain.EventKind(kind)
	e.UserID = mapNullStringPtr(userID)
	e.TenantID = mapNullStringPtr(tenantID)
	e.RiskLevel = domain.RiskLevel(riskLevel)
	return e, nil
}
