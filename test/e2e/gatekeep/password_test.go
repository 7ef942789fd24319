package gatekeep_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opswell/gatekeep/pkg/authsdk"
)

func TestChangePassword(t *testing.T) {
	ts := setupServer(t)
	seedTenantAdmin(t, ts.Store, adminEmail, adminPassword)

	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	session, err := client.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)

	err = session.ChangePassword(ctx, "WrongPassword1!", "Vbnm4Ksd7$tR")
	requireAPIError(t, err, 401, "invalid_credentials")

	apiErr := requireAPIError(t,
		session.ChangePassword(ctx, adminPassword, "password"),
		400, "weak_password")
	require.NotEmpty(t, apiErr.Description)

	const newPassword = "Vbnm4Ksd7$tR"
	require.NoError(t, session.ChangePassword(ctx, adminPassword, newPassword))

	// The change revokes every session.
	_, err = client.Refresh(ctx, session.RefreshToken())
	requireAPIError(t, err, 401, "invalid_grant")

	_, err = client.Login(ctx, adminEmail, adminPassword)
	requireAPIError(t, err, 401, "invalid_credentials")

	_, err = client.Login(ctx, adminEmail, newPassword)
	require.NoError(t, err)
}
