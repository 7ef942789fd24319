package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opswell/gatekeep/internal/auth/domain"
	"github.com/opswell/gatekeep/internal/auth/store"
	"github.com/opswell/gatekeep/pkg/cryptox"
	"github.com/opswell/gatekeep/pkg/idx"
	"github.com/opswell/gatekeep/pkg/slogx"
)

var (
	ErrInvalidRefresh = errors.New("invalid_refresh_token")
	ErrTokenReused    = errors.New("refresh_token_reused")
)

// maxFamilyWalk bounds chain traversal so a corrupted replaced_by graph can
// never spin the revocation loop.
const maxFamilyWalk = 1000

// ClientContext is the request context captured on every token mint.
type ClientContext struct {
	IP                string
	UserAgent         string
	DeviceFingerprint string
}

// RefreshTokenService mints, validates, rotates, and revokes refresh tokens.
//
// Tokens are opaque 256-bit secrets; only their SHA-256 fingerprint is
// persisted. Rotation links records into a family via replaced_by, and
// presenting a revoked token is treated as theft: the entire family is
// revoked.
type RefreshTokenService struct {
	Store    store.Store
	Security *SecurityService

	RefreshTTL      time.Duration
	MaxActiveTokens int
}

// Generate mints a fresh refresh token for the admin, enforcing the active
// session cap. When the admin is already at the cap, the oldest active
// tokens are revoked before the new one is stored, so the cap holds even
// under concurrent logins.
func (s *RefreshTokenService) Generate(
	ctx context.Context,
	admin domain.Admin,
	cc ClientContext,
) (string, domain.RefreshToken, error) {
	now := time.Now()

	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.RefreshToken{}, err
	}

	rt := domain.RefreshToken{
		ID:                idx.New().String(),
		OwnerKind:         admin.Kind,
		UserID:            admin.ID,
		TenantID:          admin.TenantID,
		TokenHash:         cryptox.FingerprintToken(opaque),
		CreatedByIP:       cc.IP,
		UserAgent:         cc.UserAgent,
		DeviceFingerprint: cc.DeviceFingerprint,
		ExpiresAt:         now.Add(s.RefreshTTL),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if s.MaxActiveTokens > 0 {
			active, err := tx.RefreshTokens().ListActiveForUser(ctx, admin.ID, admin.Kind, now)
			if err != nil {
				return err
			}
			if excess := len(active) - s.MaxActiveTokens + 1; excess > 0 {
				for _, old := range active[:excess] {
					if err := tx.RefreshTokens().RevokeRefreshToken(
						ctx, old.ID, domain.RevokedReasonMaxSessions, now,
					); err != nil {
						return err
					}
				}
			}
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, rt)
	})
	if err != nil {
		return "", domain.RefreshToken{}, err
	}

	return opaque, rt, nil
}

// Validate resolves an opaque refresh token to its active record.
//
// A revoked token is a reuse signal, not a routine failure: the whole family
// is revoked and ErrTokenReused is returned. An unknown or expired token
// returns ErrInvalidRefresh. Tokens minted before the admin's global
// invalidation stamp are revoked on sight.
func (s *RefreshTokenService) Validate(ctx context.Context, opaque string) (domain.RefreshToken, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	fp := cryptox.FingerprintToken(opaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.RefreshToken{}, ErrInvalidRefresh
		}
		return domain.RefreshToken{}, err
	}

	if rt.Revoked {
		l.Warn("revoked refresh token presented",
			slog.String("token_id", rt.ID),
			slog.String("user_id", rt.UserID),
			slog.String("revoked_reason", rt.RevokedReason),
		)

		if err := s.RevokeFamily(ctx, rt.ID, domain.RevokedReasonReuseDetected); err != nil {
			return domain.RefreshToken{}, err
		}

		if s.Security != nil {
			if _, err := s.Security.LogEvent(ctx, domain.SecurityEvent{
				Kind:     domain.EventTokenReuse,
				UserID:   &rt.UserID,
				TenantID: rt.TenantID,
				IP:       rt.LastUsedIP,
				Detail:   "revoked refresh token presented",
			}); err != nil {
				l.Error("failed to log token reuse event", slog.Any("error", err))
			}
		}

		return domain.RefreshToken{}, ErrTokenReused
	}

	if now.After(rt.ExpiresAt) {
		return domain.RefreshToken{}, ErrInvalidRefresh
	}

	// Global invalidation: a stamp on the admin retroactively rejects every
	// token minted before it.
	admin, err := s.Store.Admins().GetAdminByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.RefreshToken{}, ErrInvalidRefresh
		}
		return domain.RefreshToken{}, err
	}
	if admin.TokensInvalidatedAt != nil && rt.CreatedAt.Before(*admin.TokensInvalidatedAt) {
		if err := s.Store.RefreshTokens().RevokeRefreshToken(
			ctx, rt.ID, domain.RevokedReasonInvalidated, now,
		); err != nil {
			return domain.RefreshToken{}, err
		}
		return domain.RefreshToken{}, ErrInvalidRefresh
	}

	return rt, nil
}

// Rotate exchanges a valid refresh token for a fresh one, linking the two
// records. The old token is retired with an atomic conditional update, so
// when two rotations race only one mints a successor; the loser gets
// ErrInvalidRefresh.
func (s *RefreshTokenService) Rotate(
	ctx context.Context,
	opaque string,
	cc ClientContext,
) (string, domain.RefreshToken, error) {
	old, err := s.Validate(ctx, opaque)
	if err != nil {
		return "", domain.RefreshToken{}, err
	}

	now := time.Now()

	newOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.RefreshToken{}, err
	}

	next := domain.RefreshToken{
		ID:                idx.New().String(),
		OwnerKind:         old.OwnerKind,
		UserID:            old.UserID,
		TenantID:          old.TenantID,
		TokenHash:         cryptox.FingerprintToken(newOpaque),
		CreatedByIP:       cc.IP,
		UserAgent:         cc.UserAgent,
		DeviceFingerprint: cc.DeviceFingerprint,
		ExpiresAt:         now.Add(s.RefreshTTL),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, next); err != nil {
			return err
		}
		return tx.RefreshTokens().MarkRotated(ctx, old.ID, next.ID, cc.IP, now)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost a concurrent rotation; the token is no longer active.
			return "", domain.RefreshToken{}, ErrInvalidRefresh
		}
		return "", domain.RefreshToken{}, err
	}

	return newOpaque, next, nil
}

// Revoke revokes a single token by its opaque value. Unknown tokens are a
// silent no-op so revocation endpoints never leak token existence.
func (s *RefreshTokenService) Revoke(ctx context.Context, opaque, reason string) error {
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(opaque))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.Store.RefreshTokens().RevokeRefreshToken(ctx, rt.ID, reason, time.Now())
}

// RevokeFamily revokes every member of the rotation family containing the
// token with the given id: it first walks backwards to the family root, then
// forwards along replaced_by links, revoking anything still active. Both
// walks carry a visited set so a corrupted chain cannot loop.
func (s *RefreshTokenService) RevokeFamily(ctx context.Context, tokenID, reason string) error {
	now := time.Now()

	current, err := s.Store.RefreshTokens().GetRefreshTokenByID(ctx, tokenID)
	if err != nil {
		return err
	}

	visited := map[string]bool{current.ID: true}

	// Walk back to the family root.
	for i := 0; i < maxFamilyWalk; i++ {
		pred, err := s.Store.RefreshTokens().GetPredecessor(ctx, current.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				break
			}
			return err
		}
		if visited[pred.ID] {
			break
		}
		visited[pred.ID] = true
		current = pred
	}

	// Walk forward from the root, revoking as we go. Already revoked members
	// keep their original reason.
	seen := map[string]bool{}
	for i := 0; i < maxFamilyWalk; i++ {
		if seen[current.ID] {
			break
		}
		seen[current.ID] = true

		if !current.Revoked {
			if err := s.Store.RefreshTokens().RevokeRefreshToken(ctx, current.ID, reason, now); err != nil {
				return err
			}
		}

		if current.ReplacedBy == nil {
			break
		}
		next, err := s.Store.RefreshTokens().GetRefreshTokenByID(ctx, *current.ReplacedBy)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				break
			}
			return err
		}
		current = next
	}

	return nil
}

// RevokeAllForUser revokes every active token for the admin, e.g. for
// "log out everywhere" or an administrative lockdown.
func (s *RefreshTokenService) RevokeAllForUser(
	ctx context.Context,
	userID string,
	kind domain.AdminKind,
	reason string,
) error {
	return s.Store.RefreshTokens().RevokeAllForUser(ctx, userID, kind, reason, time.Now())
}

// ListActive returns the admin's live sessions, oldest first.
func (s *RefreshTokenService) ListActive(
	ctx context.Context,
	userID string,
	kind domain.AdminKind,
) ([]domain.RefreshToken, error) {
	return s.Store.RefreshTokens().ListActiveForUser(ctx, userID, kind, time.Now())
}

// ActiveCount reports how many live sessions the admin has.
func (s *RefreshTokenService) ActiveCount(
	ctx context.Context,
	userID string,
	kind domain.AdminKind,
) (int, error) {
	return s.Store.RefreshTokens().CountActiveForUser(ctx, userID, kind, time.Now())
}

// Cleanup hard-deletes tokens that left the audit retention window.
func (s *RefreshTokenService) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return s.Store.RefreshTokens().DeleteRetired(ctx, time.Now().Add(-retention))
}
