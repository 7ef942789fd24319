package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pquerna/otp/totp"

	"github.com/opswell/gatekeep/internal/auth/domain"
	"github.com/opswell/gatekeep/internal/auth/store"
	"github.com/opswell/gatekeep/pkg/slogx"
)

var ErrStepUpFailed = errors.New("step_up_failed")

// CompleteStepUp finishes a login that was held back for step-up
// verification. The verification token proves the password check already
// passed; the TOTP code proves possession of the second factor.
func (s *LoginService) CompleteStepUp(
	ctx context.Context,
	verificationToken, otpCode string,
	cc ClientContext,
) (*LoginResult, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.Codec.ValidateVerification(verificationToken)
	if err != nil {
		return nil, ErrStepUpFailed
	}

	admin, err := s.Store.Admins().GetAdminByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrStepUpFailed
		}
		return nil, err
	}
	if admin.Disabled {
		return nil, ErrAccountDisabled
	}
	if admin.MFASecret == nil || *admin.MFASecret == "" {
		return nil, ErrStepUpFailed
	}

	if !totp.Validate(otpCode, *admin.MFASecret) {
		s.logEvent(ctx, domain.SecurityEvent{
			Kind:     domain.EventStepUpFailure,
			UserID:   &admin.ID,
			Email:    admin.Email,
			TenantID: admin.TenantID,
			IP:       cc.IP,
			Detail:   "totp code rejected",
		}, cc)
		return nil, ErrStepUpFailed
	}

	s.logEvent(ctx, domain.SecurityEvent{
		Kind:     domain.EventStepUpSuccess,
		UserID:   &admin.ID,
		Email:    admin.Email,
		TenantID: admin.TenantID,
		IP:       cc.IP,
		Success:  true,
	}, cc)

	risk := domain.RiskAssessment{Level: domain.RiskLow}
	pair, err := s.completeLogin(ctx, admin, risk, cc)
	if err != nil {
		return nil, err
	}

	l.Info("step-up verification completed", slog.String("user_id", admin.ID))
	return &LoginResult{Admin: admin, Risk: risk, Tokens: pair}, nil
}

// EnrollMFA provisions a TOTP secret for the admin and returns the
// otpauth:// URL to present as a QR code. Re-enrolling replaces the old
// secret.
func (s *LoginService) EnrollMFA(ctx context.Context, userID, issuer string) (string, error) {
	admin, err := s.Store.Admins().GetAdminByID(ctx, userID)
	if err != nil {
		return "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: admin.Email,
	})
	if err != nil {
		return "", err
	}

	if err := s.Store.Admins().SetMFASecret(ctx, userID, key.Secret()); err != nil {
		return "", err
	}

	return key.URL(), nil
}
