package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/opswell/gatekeep/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newCodec(t *testing.T, opts ...jwtx.Option) *jwtx.Codec {
	t.Helper()
	c, err := jwtx.NewCodec(testSecret, "gatekeep-test", opts...)
	require.NoError(t, err)
	return c
}

func TestNewCodecRejectsShortSecret(t *testing.T) {
	_, err := jwtx.NewCodec([]byte("tooshort"), "iss")
	require.Error(t, err)
}

func TestSessionRoundTrip(t *testing.T) {
	c := newCodec(t)

	tok, err := c.IssueSession(jwtx.SessionParams{
		Subject:    "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV",
		Email:      "owner@acme.test",
		Audience:   jwtx.AudienceTenant,
		OwnerKind:  jwtx.OwnerTenantAdmin,
		TTL:        15 * time.Minute,
		TenantID:   "tenant-1",
		TenantSlug: "acme",
		Role:       "owner",
	})
	require.NoError(t, err)

	claims, err := c.Validate(tok, jwtx.AudienceTenant)
	require.NoError(t, err)
	require.Equal(t, "owner@acme.test", claims.Email)
	require.Equal(t, "acme", claims.TenantSlug)
	require.Equal(t, "owner", claims.Role)
	require.NotNil(t, claims.IssuedAt)
	require.NotEmpty(t, claims.ID)
	require.Empty(t, claims.Purpose, "session tokens carry no purpose marker")
}

func TestPlatformAdminClaims(t *testing.T) {
	c := newCodec(t)

	tok, err := c.IssueSession(jwtx.SessionParams{
		Subject:     "admin-1",
		Email:       "root@platform.test",
		Audience:    jwtx.AudiencePlatformAdmin,
		OwnerKind:   jwtx.OwnerPlatformAdmin,
		TTL:         time.Minute,
		Permissions: []string{"security:read", "security:write"},
	})
	require.NoError(t, err)

	claims, err := c.Validate(tok, jwtx.AudiencePlatformAdmin)
	require.NoError(t, err)
	require.Equal(t, []string{"security:read", "security:write"}, claims.Permissions)
}

func TestValidateCollapsesFailures(t *testing.T) {
	c := newCodec(t)

	tok, err := c.IssueSession(jwtx.SessionParams{
		Subject:  "u1",
		Audience: jwtx.AudienceTenant,
		TTL:      time.Minute,
	})
	require.NoError(t, err)

	t.Run("wrong audience", func(t *testing.T) {
		_, err := c.Validate(tok, jwtx.AudiencePlatformAdmin)
		require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(tok, ".")
		tampered := parts[0] + "." + parts[1] + "x." + parts[2]
		_, err := c.Validate(tampered, jwtx.AudienceTenant)
		require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := jwtx.NewCodec([]byte("ffffffffffffffffffffffffffffffff"), "gatekeep-test")
		require.NoError(t, err)
		_, err = other.Validate(tok, jwtx.AudienceTenant)
		require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := c.Validate("not.a.jwt", jwtx.AudienceTenant)
		require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	})
}

func TestValidateExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	c := newCodec(t, jwtx.WithTimeFunc(func() time.Time { return clock }), jwtx.WithLeeway(10*time.Second))

	tok, err := c.IssueSession(jwtx.SessionParams{
		Subject:  "u1",
		Audience: jwtx.AudienceTenant,
		TTL:      time.Minute,
	})
	require.NoError(t, err)

	// Within leeway just past expiry.
	clock = now.Add(time.Minute + 5*time.Second)
	_, err = c.Validate(tok, jwtx.AudienceTenant)
	require.NoError(t, err)

	// Beyond leeway.
	clock = now.Add(time.Minute + 30*time.Second)
	_, err = c.Validate(tok, jwtx.AudienceTenant)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestVerificationTokenPurposePinning(t *testing.T) {
	c := newCodec(t)

	vt, err := c.IssueVerification("u1", jwtx.OwnerTenantAdmin, "owner@acme.test", 5*time.Minute)
	require.NoError(t, err)

	claims, err := c.ValidateVerification(vt)
	require.NoError(t, err)
	require.Equal(t, jwtx.PurposeStepUp, claims.Purpose)

	// A session token minted for the step-up audience but without the purpose
	// marker must not pass verification validation.
	session, err := c.IssueSession(jwtx.SessionParams{
		Subject:  "u1",
		Audience: jwtx.AudienceStepUp,
		TTL:      5 * time.Minute,
	})
	require.NoError(t, err)
	_, err = c.ValidateVerification(session)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)

	// And a verification token is not a session token for other audiences.
	_, err = c.Validate(vt, jwtx.AudienceTenant)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestPeekExpiry(t *testing.T) {
	c := newCodec(t)

	tok, err := c.IssueSession(jwtx.SessionParams{
		Subject:  "u1",
		Audience: jwtx.AudienceTenant,
		TTL:      time.Hour,
	})
	require.NoError(t, err)

	exp := jwtx.PeekExpiry(tok)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	require.True(t, jwtx.PeekExpiry("junk").IsZero())
	require.True(t, jwtx.PeekExpiry("").IsZero())
}
