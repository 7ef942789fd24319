package gatekeep_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opswell/gatekeep/pkg/authsdk"
)

func TestRefreshRotation(t *testing.T) {
	ts := setupServer(t)
	seedTenantAdmin(t, ts.Store, adminEmail, adminPassword)

	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	session, err := client.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)
	original := session.RefreshToken()

	resp, err := client.Refresh(ctx, original)
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEqual(t, original, resp.RefreshToken)

	// Rotation does not multiply sessions; the account still has one.
	resumed, err := client.NewSessionFromRefreshToken(ctx, resp.RefreshToken)
	require.NoError(t, err)
	sessions, err := resumed.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}

func TestRefreshReuseKillsFamily(t *testing.T) {
	ts := setupServer(t)
	seedTenantAdmin(t, ts.Store, adminEmail, adminPassword)

	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	session, err := client.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)
	stolen := session.RefreshToken()

	resp, err := client.Refresh(ctx, stolen)
	require.NoError(t, err)

	// Replaying the consumed token is theft; the whole family dies.
	_, err = client.Refresh(ctx, stolen)
	requireAPIError(t, err, 401, "invalid_grant")

	_, err = client.Refresh(ctx, resp.RefreshToken)
	requireAPIError(t, err, 401, "invalid_grant")
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := setupServer(t)
	seedTenantAdmin(t, ts.Store, adminEmail, adminPassword)

	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	session, err := client.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)

	require.NoError(t, session.Logout(ctx))

	_, err = client.Refresh(ctx, session.RefreshToken())
	requireAPIError(t, err, 401, "invalid_grant")

	// Logout is idempotent from the caller's point of view.
	require.NoError(t, client.Logout(ctx, session.RefreshToken()))
}

func TestLogoutAll(t *testing.T) {
	ts := setupServer(t)
	seedTenantAdmin(t, ts.Store, adminEmail, adminPassword)

	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	first, err := client.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)
	second, err := client.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)

	require.NoError(t, second.LogoutAll(ctx))

	_, err = client.Refresh(ctx, first.RefreshToken())
	requireAPIError(t, err, 401, "invalid_grant")
	_, err = client.Refresh(ctx, second.RefreshToken())
	requireAPIError(t, err, 401, "invalid_grant")
}
