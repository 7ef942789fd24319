package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opswell/gatekeep/internal/auth/domain"
	"github.com/opswell/gatekeep/internal/auth/notify"
	"github.com/opswell/gatekeep/internal/auth/store"
	"github.com/opswell/gatekeep/pkg/idx"
	"github.com/opswell/gatekeep/pkg/slogx"
)

// Risk score weights. Brute force dominates; a single corroborating signal
// alongside any other pushes an attempt to Medium.
const (
	riskWeightBruteForce   = 4
	riskWeightSuspiciousIP = 3
	riskWeightNewIP        = 1
	riskWeightNewDevice    = 1
	riskWeightUnusualTime  = 1
	riskWeightFirstLogin   = 1

	riskScoreHigh   = 4
	riskScoreMedium = 2
)

// Unusual-time window, UTC. Legitimate admin traffic at these hours is rare
// enough that it earns a point.
const (
	unusualHourStart = 2
	unusualHourEnd   = 5
)

// alwaysAlertKinds raise an operator alert regardless of the computed risk
// level.
var alwaysAlertKinds = map[domain.EventKind]bool{
	domain.EventTokenReuse:         true,
	domain.EventBruteForce:         true,
	domain.EventAdminImpersonation: true,
}

// SecurityService owns the append-only security event log and the risk
// heuristics layered on top of it.
type SecurityService struct {
	Store store.Store
	Sink  notify.AlertSink

	// Brute force detection window and threshold, per email or per IP.
	BruteForceThreshold int
	BruteForceWindow    time.Duration

	// Suspicious IP detection. The window is wide (a day) because slow
	// distributed attacks are the ones worth catching here.
	SuspiciousWindow         time.Duration
	SuspiciousFailureLimit   int
	SuspiciousDistinctEmails int

	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

func (s *SecurityService) clock() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// LogEvent classifies, persists, and (for high-severity events) alerts on a
// security event. The caller fills the descriptive fields; ID, timestamp,
// risk level, and the alert flag are assigned here.
//
// Alert delivery is best effort. A sink failure is logged and the event is
// still recorded.
func (s *SecurityService) LogEvent(ctx context.Context, e domain.SecurityEvent) (domain.SecurityEvent, error) {
	l := slogx.FromContext(ctx)

	e.ID = idx.New().String()
	e.CreatedAt = s.clock()
	e.RiskLevel = s.classify(ctx, e)
	e.AlertTriggered = e.RiskLevel == domain.RiskHigh || alwaysAlertKinds[e.Kind]

	if err := s.Store.SecurityEvents().InsertSecurityEvent(ctx, e); err != nil {
		return domain.SecurityEvent{}, err
	}

	if e.AlertTriggered && s.Sink != nil {
		if err := s.Sink.Send(ctx, notify.AlertFromEvent(e)); err != nil {
			l.Error("failed to deliver security alert",
				slog.Any("error", err),
				slog.String("event_id", e.ID),
				slog.String("kind", string(e.Kind)),
			)
		}
	}

	return e, nil
}

// classify applies the risk rules in order; the first match wins.
func (s *SecurityService) classify(ctx context.Context, e domain.SecurityEvent) domain.RiskLevel {
	switch e.Kind {
	case domain.EventTokenReuse, domain.EventBruteForce, domain.EventSuspiciousIP:
		return domain.RiskHigh
	case domain.EventAccountLockout, domain.EventStepUpFailure:
		return domain.RiskMedium
	}

	if e.Kind == domain.EventLoginFailure && (e.IP != "" || e.Email != "") {
		suspicious, err := s.IsSuspiciousIP(ctx, e.IP)
		if err != nil {
			slogx.FromContext(ctx).Error("suspicious ip check failed", slog.Any("error", err))
		} else if suspicious {
			return domain.RiskHigh
		}

		brute, err := s.IsBruteForce(ctx, e.Email, e.IP)
		if err != nil {
			slogx.FromContext(ctx).Error("brute force check failed", slog.Any("error", err))
		} else if brute {
			return domain.RiskHigh
		}
	}

	return domain.RiskLow
}

// IsSuspiciousIP reports whether ip shows an attack signature over the last
// day: either a pile of failed logins, or attempts spread across many
// distinct emails (credential stuffing).
func (s *SecurityService) IsSuspiciousIP(ctx context.Context, ip string) (bool, error) {
	if ip == "" {
		return false, nil
	}
	since := s.clock().Add(-s.SuspiciousWindow)

	failures, err := s.Store.SecurityEvents().CountFailedLoginsByIP(ctx, ip, since)
	if err != nil {
		return false, err
	}
	if failures >= s.SuspiciousFailureLimit {
		return true, nil
	}

	emails, err := s.Store.SecurityEvents().CountDistinctEmailsByIP(ctx, ip, since)
	if err != nil {
		return false, err
	}
	return emails >= s.SuspiciousDistinctEmails, nil
}

// IsBruteForce reports whether recent failures for the email (preferred) or
// the IP crossed the configured threshold. With neither identifier there is
// nothing to correlate on, so the answer is false.
func (s *SecurityService) IsBruteForce(ctx context.Context, email, ip string) (bool, error) {
	since := s.clock().Add(-s.BruteForceWindow)

	switch {
	case email != "":
		n, err := s.Store.SecurityEvents().CountFailedLoginsByEmail(ctx, email, since)
		if err != nil {
			return false, err
		}
		return n >= s.BruteForceThreshold, nil
	case ip != "":
		n, err := s.Store.SecurityEvents().CountFailedLoginsByIP(ctx, ip, since)
		if err != nil {
			return false, err
		}
		return n >= s.BruteForceThreshold, nil
	default:
		return false, nil
	}
}

// AssessLoginRisk scores one login attempt against the admin's history.
// Call it before issuing tokens; a Medium or higher result should demand
// step-up verification.
func (s *SecurityService) AssessLoginRisk(
	ctx context.Context,
	email, ip, userAgent, deviceFingerprint string,
) (domain.RiskAssessment, error) {
	now := s.clock()
	var a domain.RiskAssessment

	last, err := s.Store.SecurityEvents().GetLastSuccessfulLogin(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		a.FirstLogin = true
	case err != nil:
		return domain.RiskAssessment{}, err
	default:
		if ip != "" && last.IP != ip {
			a.NewIP = true
		}
		a.NewDevice = isNewDevice(last, userAgent, deviceFingerprint)
	}

	a.SuspiciousIP, err = s.IsSuspiciousIP(ctx, ip)
	if err != nil {
		return domain.RiskAssessment{}, err
	}

	a.BruteForce, err = s.IsBruteForce(ctx, email, ip)
	if err != nil {
		return domain.RiskAssessment{}, err
	}

	hour := now.UTC().Hour()
	a.UnusualTime = hour >= unusualHourStart && hour < unusualHourEnd

	add := func(on bool, weight int, factor string) {
		if on {
			a.Score += weight
			a.Factors = append(a.Factors, factor)
		}
	}
	add(a.BruteForce, riskWeightBruteForce, "brute force pattern")
	add(a.SuspiciousIP, riskWeightSuspiciousIP, "suspicious source ip")
	add(a.NewIP, riskWeightNewIP, "new ip address")
	add(a.NewDevice, riskWeightNewDevice, "new device")
	add(a.UnusualTime, riskWeightUnusualTime, fmt.Sprintf("unusual hour (%02d:00 utc)", hour))
	add(a.FirstLogin, riskWeightFirstLogin, "first login")

	switch {
	case a.Score >= riskScoreHigh:
		a.Level = domain.RiskHigh
	case a.Score >= riskScoreMedium:
		a.Level = domain.RiskMedium
	default:
		a.Level = domain.RiskLow
	}
	a.RequiresStepUp = a.Level.AtLeast(domain.RiskMedium)

	return a, nil
}

// isNewDevice compares the attempt against the last successful login. The
// fingerprint decides when both sides carry one; otherwise the user agent
// does. Not every client sends a fingerprint header, but a browser always
// sends a user agent, so the fallback keeps the signal alive. An attempt
// with no identifier on either side is indistinguishable, not new.
func isNewDevice(last domain.SecurityEvent, userAgent, deviceFingerprint string) bool {
	if deviceFingerprint != "" && last.DeviceFingerprint != "" {
		return last.DeviceFingerprint != deviceFingerprint
	}
	if userAgent != "" && last.UserAgent != "" {
		return last.UserAgent != userAgent
	}
	return false
}

// RecentEvents returns the newest events for a user, newest first.
func (s *SecurityService) RecentEvents(ctx context.Context, userID string, limit int) ([]domain.SecurityEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.Store.SecurityEvents().ListRecentForUser(ctx, userID, limit)
}

// Statistics aggregates the event log over a window, optionally scoped to a
// tenant.
func (s *SecurityService) Statistics(
	ctx context.Context,
	from, to time.Time,
	tenantID *string,
) (domain.SecurityStats, error) {
	return s.Store.SecurityEvents().AggregateStats(ctx, from, to, tenantID)
}

// Cleanup prunes events older than the retention window.
func (s *SecurityService) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return s.Store.SecurityEvents().DeleteEventsBefore(ctx, time.Now().Add(-retention))
}
