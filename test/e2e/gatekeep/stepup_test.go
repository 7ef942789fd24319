package gatekeep_test

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/opswell/gatekeep/internal/auth/domain"
	"github.com/opswell/gatekeep/pkg/authsdk"
)

// secretFromOTPAuthURL extracts the TOTP secret from an otpauth:// URL.
func secretFromOTPAuthURL(t *testing.T, otpauthURL string) string {
	t.Helper()

	u, err := url.Parse(otpauthURL)
	require.NoError(t, err)
	secret := u.Query().Get("secret")
	require.NotEmpty(t, secret)
	return secret
}

// markRiskySource plants a successful login from a different address and
// device, so the next attempt scores as new-IP plus new-device and the
// service demands step-up.
func markRiskySource(t *testing.T, ts *testServer, admin domain.Admin) {
	t.Helper()

	_, err := ts.Security.LogEvent(context.Background(), domain.SecurityEvent{
		Kind:              domain.EventLoginSuccess,
		UserID:            &admin.ID,
		Email:             admin.Email,
		TenantID:          admin.TenantID,
		IP:                "198.51.100.7",
		DeviceFingerprint: "laptop-at-home",
		Success:           true,
	})
	require.NoError(t, err)
}

func TestStepUpFlow(t *testing.T) {
	ts := setupServer(t)
	admin := seedTenantAdmin(t, ts.Store, adminEmail, adminPassword)

	client := authsdk.NewClient(ts.URL)
	client.DeviceFingerprint = "unknown-device"
	ctx := context.Background()

	// Enroll TOTP while the account is still low risk.
	session, err := client.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)
	enroll, err := session.EnrollMFA(ctx)
	require.NoError(t, err)
	require.Contains(t, enroll.OTPAuthURL, "otpauth://")
	secret := secretFromOTPAuthURL(t, enroll.OTPAuthURL)
	require.NoError(t, session.Logout(ctx))

	markRiskySource(t, ts, admin)

	// New address plus new device: tokens are withheld.
	_, err = client.Login(ctx, adminEmail, adminPassword)
	var stepUp *authsdk.StepUpRequiredError
	require.ErrorAs(t, err, &stepUp)
	require.NotEmpty(t, stepUp.VerificationToken)

	// A wrong code fails closed.
	_, err = client.CompleteStepUp(ctx, stepUp.VerificationToken, "000000")
	requireAPIError(t, err, 401, "invalid_credentials")

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	verified, err := client.CompleteStepUp(ctx, stepUp.VerificationToken, code)
	require.NoError(t, err)
	require.NotEmpty(t, verified.AccessToken())

	sessions, err := verified.ListSessions(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, sessions)
}

func TestStepUpRejectsGarbageToken(t *testing.T) {
	ts := setupServer(t)
	seedTenantAdmin(t, ts.Store, adminEmail, adminPassword)

	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	_, err := client.CompleteStepUp(ctx, "not-a-token", "123456")
	requireAPIError(t, err, 401, "invalid_credentials")

	var stepUp *authsdk.StepUpRequiredError
	require.False(t, errors.As(err, &stepUp))
}
