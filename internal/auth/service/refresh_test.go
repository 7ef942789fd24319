package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opswell/gatekeep/internal/auth/domain"
	"github.com/opswell/gatekeep/pkg/cryptox"
)

func TestRefreshRotationChain(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newRefreshService(st, newSecurityService(st, nil))
	admin := seedAdmin(t, st, domain.AdminKindTenant, "owner@acme.test", "Dkwpfmqa9!x")

	cc := ClientContext{IP: "203.0.113.7", UserAgent: "test-agent"}

	opaque, first, err := svc.Generate(ctx, admin, cc)
	require.NoError(t, err)
	require.NotEmpty(t, opaque)

	// The opaque value is never stored verbatim.
	require.NotEqual(t, opaque, first.TokenHash)
	require.Equal(t, cryptox.FingerprintToken(opaque), first.TokenHash)

	// Rotate three times and verify each link.
	ids := []string{first.ID}
	for i := 0; i < 3; i++ {
		next, rt, err := svc.Rotate(ctx, opaque, cc)
		require.NoError(t, err)
		opaque = next
		ids = append(ids, rt.ID)
	}

	for i := 0; i < len(ids)-1; i++ {
		link, err := st.RefreshTokens().GetRefreshTokenByID(ctx, ids[i])
		require.NoError(t, err)
		require.True(t, link.Revoked)
		require.Equal(t, domain.RevokedReasonRotated, link.RevokedReason)
		require.NotNil(t, link.ReplacedBy)
		require.Equal(t, ids[i+1], *link.ReplacedBy)
	}

	tip, err := st.RefreshTokens().GetRefreshTokenByID(ctx, ids[len(ids)-1])
	require.NoError(t, err)
	require.False(t, tip.Revoked)
	require.Nil(t, tip.ReplacedBy)

	// Only the tip is active.
	n, err := svc.ActiveCount(ctx, admin.ID, admin.Kind)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestReuseDetectionRevokesFamily(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sink := &captureSink{}
	svc := newRefreshService(st, newSecurityService(st, sink))
	admin := seedAdmin(t, st, domain.AdminKindTenant, "owner@acme.test", "Dkwpfmqa9!x")

	cc := ClientContext{IP: "203.0.113.7"}

	stolen, first, err := svc.Generate(ctx, admin, cc)
	require.NoError(t, err)

	second, _, err := svc.Rotate(ctx, stolen, cc)
	require.NoError(t, err)
	_, tip, err := svc.Rotate(ctx, second, cc)
	require.NoError(t, err)

	// Presenting the stolen (already rotated) token is a breach signal.
	_, err = svc.Validate(ctx, stolen)
	require.ErrorIs(t, err, ErrTokenReused)

	// The entire family is dead, including the previously active tip.
	got, err := st.RefreshTokens().GetRefreshTokenByID(ctx, tip.ID)
	require.NoError(t, err)
	require.True(t, got.Revoked)
	require.Equal(t, domain.RevokedReasonReuseDetected, got.RevokedReason)

	// Rotated links keep their original reason.
	got, err = st.RefreshTokens().GetRefreshTokenByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RevokedReasonRotated, got.RevokedReason)

	n, err := svc.ActiveCount(ctx, admin.ID, admin.Kind)
	require.NoError(t, err)
	require.Zero(t, n)

	// Reuse raised a high-severity alert.
	require.NotEmpty(t, sink.alerts)
	require.Equal(t, domain.EventTokenReuse, sink.alerts[0].Kind)
	require.Equal(t, domain.RiskHigh, sink.alerts[0].RiskLevel)
}

func TestSessionCapRevokesOldest(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newRefreshService(st, newSecurityService(st, nil))
	svc.MaxActiveTokens = 3
	admin := seedAdmin(t, st, domain.AdminKindTenant, "owner@acme.test", "Dkwpfmqa9!x")

	var ids []string
	for i := 0; i < 4; i++ {
		_, rt, err := svc.Generate(ctx, admin, ClientContext{IP: "203.0.113.7"})
		require.NoError(t, err)
		ids = append(ids, rt.ID)
		time.Sleep(2 * time.Millisecond)
	}

	n, err := svc.ActiveCount(ctx, admin.ID, admin.Kind)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// The oldest session was the one evicted.
	oldest, err := st.RefreshTokens().GetRefreshTokenByID(ctx, ids[0])
	require.NoError(t, err)
	require.True(t, oldest.Revoked)
	require.Equal(t, domain.RevokedReasonMaxSessions, oldest.RevokedReason)

	newest, err := st.RefreshTokens().GetRefreshTokenByID(ctx, ids[3])
	require.NoError(t, err)
	require.False(t, newest.Revoked)
}

func TestValidateEnforcesGlobalInvalidation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newRefreshService(st, newSecurityService(st, nil))
	admin := seedAdmin(t, st, domain.AdminKindTenant, "owner@acme.test", "Dkwpfmqa9!x")

	opaque, rt, err := svc.Generate(ctx, admin, ClientContext{IP: "203.0.113.7"})
	require.NoError(t, err)

	// Stamp strictly after the token was minted.
	require.NoError(t, st.Admins().SetTokensInvalidatedAt(ctx, admin.ID, rt.CreatedAt.Add(time.Second)))

	_, err = svc.Validate(ctx, opaque)
	require.ErrorIs(t, err, ErrInvalidRefresh)

	got, err := st.RefreshTokens().GetRefreshTokenByID(ctx, rt.ID)
	require.NoError(t, err)
	require.True(t, got.Revoked)
	require.Equal(t, domain.RevokedReasonInvalidated, got.RevokedReason)
}

func TestValidateRejectsUnknownAndExpired(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newRefreshService(st, newSecurityService(st, nil))
	admin := seedAdmin(t, st, domain.AdminKindTenant, "owner@acme.test", "Dkwpfmqa9!x")

	_, err := svc.Validate(ctx, "never-issued")
	require.ErrorIs(t, err, ErrInvalidRefresh)

	// An expired token is invalid but NOT a reuse signal.
	svc.RefreshTTL = -time.Hour
	opaque, _, err := svc.Generate(ctx, admin, ClientContext{})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, opaque)
	require.ErrorIs(t, err, ErrInvalidRefresh)
	require.NotErrorIs(t, err, ErrTokenReused)
}

func TestRevokeAllAndCleanup(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newRefreshService(st, newSecurityService(st, nil))
	admin := seedAdmin(t, st, domain.AdminKindTenant, "owner@acme.test", "Dkwpfmqa9!x")

	for i := 0; i < 3; i++ {
		_, _, err := svc.Generate(ctx, admin, ClientContext{})
		require.NoError(t, err)
	}

	require.NoError(t, svc.RevokeAllForUser(ctx, admin.ID, admin.Kind, domain.RevokedReasonAdmin))

	n, err := svc.ActiveCount(ctx, admin.ID, admin.Kind)
	require.NoError(t, err)
	require.Zero(t, n)

	// Revoked records survive inside the retention window and are deleted
	// once past it.
	deleted, err := svc.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	require.Zero(t, deleted)

	deleted, err = svc.Cleanup(ctx, -time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 3, deleted)
}
