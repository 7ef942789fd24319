package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opswell/gatekeep/internal/auth/domain"
	"github.com/opswell/gatekeep/internal/auth/ipguard"
	"github.com/opswell/gatekeep/internal/auth/store"
	"github.com/opswell/gatekeep/pkg/cryptox"
	"github.com/opswell/gatekeep/pkg/jwtx"
	"github.com/opswell/gatekeep/pkg/passpolicy"
	"github.com/opswell/gatekeep/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountLocked      = errors.New("account_locked")
	ErrAccountDisabled    = errors.New("account_disabled")
	ErrLoginRejected      = errors.New("login_rejected")
	ErrWeakPassword       = errors.New("weak_password")
)

// LoginResult is the outcome of a credential check that passed. Either
// Tokens is set, or StepUpRequired is set together with a short-lived
// verification token the client completes via the step-up endpoint.
type LoginResult struct {
	Admin domain.Admin
	Risk  domain.RiskAssessment

	Tokens *domain.TokenPair

	StepUpRequired    bool
	VerificationToken string
}

// LoginService orchestrates the full login flow: IP reputation, lockout,
// password verification, risk assessment, step-up, and token issuance.
//
// Callers surface ErrInvalidCredentials, ErrAccountLocked,
// ErrAccountDisabled, and ErrLoginRejected identically to the client; the
// distinct sentinels exist for logging and tests, not for the wire.
type LoginService struct {
	Store    store.Store
	Tokens   *RefreshTokenService
	Security *SecurityService
	IPGuard  ipguard.Cache
	Codec    *jwtx.Codec
	Policy   *passpolicy.Policy

	AccessTTL time.Duration
	StepUpTTL time.Duration

	LockoutThreshold int
	LockoutDuration  time.Duration
}

// Login verifies credentials for an admin of the given kind and, when the
// risk assessment allows it, issues a session. High enough risk on a valid
// credential pair yields a step-up challenge instead of tokens.
func (s *LoginService) Login(
	ctx context.Context,
	kind domain.AdminKind,
	email, password string,
	cc ClientContext,
) (*LoginResult, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))

	if s.IPGuard != nil && cc.IP != "" {
		blocked, err := s.IPGuard.IsBlocked(ctx, cc.IP)
		if err != nil {
			return nil, err
		}
		if blocked {
			s.logEvent(ctx, domain.SecurityEvent{
				Kind:   domain.EventLoginFailure,
				Email:  email,
				IP:     cc.IP,
				Detail: "source ip blocked",
			}, cc)
			return nil, ErrLoginRejected
		}
	}

	admin, err := s.Store.Admins().GetAdminByEmail(ctx, kind, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time on unknown accounts so the response
			// cannot be used to enumerate emails.
			_ = cryptox.VerifyPassword(password, dummyHash)
			s.recordFailure(ctx, domain.Admin{}, email, cc)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if admin.Disabled {
		s.logEvent(ctx, domain.SecurityEvent{
			Kind:     domain.EventLoginFailure,
			UserID:   &admin.ID,
			Email:    email,
			TenantID: admin.TenantID,
			IP:       cc.IP,
			Detail:   "account disabled",
		}, cc)
		return nil, ErrAccountDisabled
	}

	if admin.LockedOut(now) {
		s.logEvent(ctx, domain.SecurityEvent{
			Kind:     domain.EventLoginFailure,
			UserID:   &admin.ID,
			Email:    email,
			TenantID: admin.TenantID,
			IP:       cc.IP,
			Detail:   "account locked",
		}, cc)
		return nil, ErrAccountLocked
	}

	if err := cryptox.VerifyPassword(password, admin.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrMismatch) {
			l.Error("stored password hash is unusable",
				slog.Any("error", err),
				slog.String("user_id", admin.ID),
			)
		}
		s.recordFailure(ctx, admin, email, cc)
		return nil, ErrInvalidCredentials
	}

	risk, err := s.Security.AssessLoginRisk(ctx, email, cc.IP, cc.UserAgent, cc.DeviceFingerprint)
	if err != nil {
		return nil, err
	}

	// Step-up only makes sense when the admin has enrolled a second factor.
	if risk.RequiresStepUp && admin.MFASecret != nil && *admin.MFASecret != "" {
		verification, err := s.Codec.IssueVerification(admin.ID, string(admin.Kind), admin.Email, s.StepUpTTL)
		if err != nil {
			return nil, err
		}
		l.Info("step-up verification required",
			slog.String("user_id", admin.ID),
			slog.String("risk_level", string(risk.Level)),
			slog.Int("risk_score", risk.Score),
		)
		return &LoginResult{
			Admin:             admin,
			Risk:              risk,
			StepUpRequired:    true,
			VerificationToken: verification,
		}, nil
	}

	pair, err := s.completeLogin(ctx, admin, risk, cc)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Admin: admin, Risk: risk, Tokens: pair}, nil
}

// completeLogin is the shared tail of Login and step-up: stamp the success,
// log it, and mint the session pair.
func (s *LoginService) completeLogin(
	ctx context.Context,
	admin domain.Admin,
	risk domain.RiskAssessment,
	cc ClientContext,
) (*domain.TokenPair, error) {
	now := time.Now()

	if err := s.Store.Admins().RecordLoginSuccess(ctx, admin.ID, cc.IP, cc.UserAgent, now); err != nil {
		return nil, err
	}

	s.logEvent(ctx, domain.SecurityEvent{
		Kind:     domain.EventLoginSuccess,
		UserID:   &admin.ID,
		Email:    admin.Email,
		TenantID: admin.TenantID,
		IP:       cc.IP,
		Success:  true,
		Detail:   fmt.Sprintf("risk %s (score %d)", risk.Level, risk.Score),
	}, cc)

	return s.issuePair(ctx, admin, cc)
}

// issuePair mints the refresh token and signs the access JWT.
func (s *LoginService) issuePair(
	ctx context.Context,
	admin domain.Admin,
	cc ClientContext,
) (*domain.TokenPair, error) {
	refreshOpaque, _, err := s.Tokens.Generate(ctx, admin, cc)
	if err != nil {
		return nil, err
	}

	access, err := s.Codec.IssueSession(sessionParams(admin, s.AccessTTL))
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refreshOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.AccessTTL / time.Second),
	}, nil
}

// Refresh exchanges a refresh token for a new pair, rotating the refresh
// token in the process.
func (s *LoginService) Refresh(ctx context.Context, refreshOpaque string, cc ClientContext) (*domain.TokenPair, error) {
	newOpaque, rt, err := s.Tokens.Rotate(ctx, refreshOpaque, cc)
	if err != nil {
		return nil, err
	}

	admin, err := s.Store.Admins().GetAdminByID(ctx, rt.UserID)
	if err != nil {
		return nil, err
	}
	if admin.Disabled {
		return nil, ErrAccountDisabled
	}

	access, err := s.Codec.IssueSession(sessionParams(admin, s.AccessTTL))
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: newOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.AccessTTL / time.Second),
	}, nil
}

// LogoutEverywhere revokes every session and stamps the global invalidation
// instant, so even a token record this instance has not seen yet dies on its
// next use.
func (s *LoginService) LogoutEverywhere(ctx context.Context, userID string, kind domain.AdminKind, cc ClientContext) error {
	now := time.Now()

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Admins().SetTokensInvalidatedAt(ctx, userID, now); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeAllForUser(ctx, userID, kind, domain.RevokedReasonLogoutAll, now)
	})
	if err != nil {
		return err
	}

	s.logEvent(ctx, domain.SecurityEvent{
		Kind:    domain.EventLogoutAll,
		UserID:  &userID,
		IP:      cc.IP,
		Success: true,
	}, cc)
	return nil
}

// ChangePassword verifies the current password, enforces the password
// policy, and invalidates every existing session.
func (s *LoginService) ChangePassword(ctx context.Context, userID, current, next string, cc ClientContext) error {
	admin, err := s.Store.Admins().GetAdminByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := cryptox.VerifyPassword(current, admin.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	if ok, reasons := s.Policy.Validate(next); !ok {
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(reasons, "; "))
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return err
	}

	now := time.Now()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Admins().UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		if err := tx.Admins().SetTokensInvalidatedAt(ctx, userID, now); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeAllForUser(ctx, userID, admin.Kind, domain.RevokedReasonInvalidated, now)
	})
	if err != nil {
		return err
	}

	s.logEvent(ctx, domain.SecurityEvent{
		Kind:    domain.EventPasswordReset,
		UserID:  &userID,
		Email:   admin.Email,
		IP:      cc.IP,
		Success: true,
	}, cc)
	return nil
}

// recordFailure is the shared failed-login tail: bump counters, feed the IP
// reputation cache, and emit the right events. admin is the zero value for
// unknown accounts.
func (s *LoginService) recordFailure(ctx context.Context, admin domain.Admin, email string, cc ClientContext) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	if admin.ID != "" {
		var lockUntil *time.Time
		lockingOut := s.LockoutThreshold > 0 && admin.FailedLoginAttempts+1 >= s.LockoutThreshold
		if lockingOut {
			t := now.Add(s.LockoutDuration)
			lockUntil = &t
		}
		if err := s.Store.Admins().RecordLoginFailure(ctx, admin.ID, lockUntil); err != nil {
			l.Error("failed to record login failure", slog.Any("error", err), slog.String("user_id", admin.ID))
		}
		if lockingOut {
			s.logEvent(ctx, domain.SecurityEvent{
				Kind:     domain.EventAccountLockout,
				UserID:   &admin.ID,
				Email:    email,
				TenantID: admin.TenantID,
				IP:       cc.IP,
				Detail:   fmt.Sprintf("locked until %s", lockUntil.UTC().Format(time.RFC3339)),
			}, cc)
		}
	}

	var userID *string
	if admin.ID != "" {
		userID = &admin.ID
	}
	s.logEvent(ctx, domain.SecurityEvent{
		Kind:     domain.EventLoginFailure,
		UserID:   userID,
		Email:    email,
		TenantID: admin.TenantID,
		IP:       cc.IP,
		Detail:   "password verification failed",
	}, cc)

	if s.IPGuard != nil && cc.IP != "" {
		tripped, err := s.IPGuard.RecordFailure(ctx, cc.IP)
		if err != nil {
			l.Error("ip reputation update failed", slog.Any("error", err), slog.String("ip", cc.IP))
		} else if tripped {
			s.logEvent(ctx, domain.SecurityEvent{
				Kind:   domain.EventIPBlocked,
				Email:  email,
				IP:     cc.IP,
				Detail: "failed login threshold exceeded",
			}, cc)
		}
	}

	brute, err := s.Security.IsBruteForce(ctx, email, cc.IP)
	if err != nil {
		l.Error("brute force check failed", slog.Any("error", err))
		return
	}
	if brute {
		s.logEvent(ctx, domain.SecurityEvent{
			Kind:     domain.EventBruteForce,
			UserID:   userID,
			Email:    email,
			TenantID: admin.TenantID,
			IP:       cc.IP,
			Detail:   "failed login threshold exceeded",
		}, cc)
	}
}

// logEvent records a security event, logging rather than propagating any
// storage failure: the login outcome must not change because the audit
// write hiccuped.
func (s *LoginService) logEvent(ctx context.Context, e domain.SecurityEvent, cc ClientContext) {
	e.UserAgent = cc.UserAgent
	e.DeviceFingerprint = cc.DeviceFingerprint
	if _, err := s.Security.LogEvent(ctx, e); err != nil {
		slogx.FromContext(ctx).Error("failed to record security event",
			slog.Any("error", err),
			slog.String("kind", string(e.Kind)),
		)
	}
}

func sessionParams(admin domain.Admin, ttl time.Duration) jwtx.SessionParams {
	p := jwtx.SessionParams{
		Subject:   admin.ID,
		Email:     admin.Email,
		OwnerKind: string(admin.Kind),
		TTL:       ttl,
	}
	switch admin.Kind {
	case domain.AdminKindPlatform:
		p.Audience = jwtx.AudiencePlatformAdmin
		p.Permissions = admin.Permissions
	default:
		p.Audience = jwtx.AudienceTenant
		if admin.TenantID != nil {
			p.TenantID = *admin.TenantID
		}
		p.TenantSlug = admin.TenantSlug
		p.Role = admin.Role
	}
	return p
}

// dummyHash keeps the unknown-account path doing real Argon2 work. The
// password behind it is random and discarded.
const dummyHash = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$S2dmyVVIrBvHQkCVDeQnhNYBcXDJGASrdA1lVF6SDINE"
