package gatekeep_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opswell/gatekeep/pkg/authsdk"
)

func TestIPBlockAdministration(t *testing.T) {
	ts := setupServer(t)
	seedTenantAdmin(t, ts.Store, adminEmail, adminPassword)
	seedPlatformAdmin(t, ts.Store, platformEmail, platformPassword)

	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	ops, err := client.PlatformLogin(ctx, platformEmail, platformPassword)
	require.NoError(t, err)

	blocked, err := ops.ListBlockedIPs(ctx)
	require.NoError(t, err)
	require.Empty(t, blocked)

	// Block the loopback address the test clients log in from.
	require.NoError(t, ops.BlockIP(ctx, authsdk.BlockIPRequest{
		IP:       "127.0.0.1",
		Reason:   "e2e abuse simulation",
		Duration: "1h",
	}))

	blocked, err = ops.ListBlockedIPs(ctx)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	require.Equal(t, "127.0.0.1", blocked[0].IP)
	require.Equal(t, "e2e abuse simulation", blocked[0].Reason)

	// Logins from the blocked address are rejected before any credential
	// check; established bearer tokens keep working.
	_, err = client.Login(ctx, adminEmail, adminPassword)
	requireAPIError(t, err, 401, "invalid_credentials")

	require.NoError(t, ops.UnblockIP(ctx, "127.0.0.1"))

	_, err = client.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)

	// Unblocking twice is a 404.
	err = ops.UnblockIP(ctx, "127.0.0.1")
	requireAPIError(t, err, 404, "not_found")
}

func TestSecuritySurfaceRejectsBadInput(t *testing.T) {
	ts := setupServer(t)
	seedPlatformAdmin(t, ts.Store, platformEmail, platformPassword)

	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	ops, err := client.PlatformLogin(ctx, platformEmail, platformPassword)
	require.NoError(t, err)

	err = ops.BlockIP(ctx, authsdk.BlockIPRequest{IP: "not-an-address"})
	requireAPIError(t, err, 400, "invalid_request")

	err = ops.BlockIP(ctx, authsdk.BlockIPRequest{IP: "203.0.113.9", Duration: "bogus"})
	requireAPIError(t, err, 400, "invalid_request")
}

func TestSecuritySurfaceRequiresPlatformSession(t *testing.T) {
	ts := setupServer(t)
	seedTenantAdmin(t, ts.Store, adminEmail, adminPassword)

	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	tenant, err := client.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)

	// A tenant session holds the wrong audience for the security surface.
	_, err = tenant.ListBlockedIPs(ctx)
	requireAPIError(t, err, 401, "invalid_token")
}

func TestSecurityEventsAndStats(t *testing.T) {
	ts := setupServer(t)
	admin := seedTenantAdmin(t, ts.Store, adminEmail, adminPassword)
	seedPlatformAdmin(t, ts.Store, platformEmail, platformPassword)

	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	// Generate some history: two failures, one success.
	_, _ = client.Login(ctx, adminEmail, "WrongPassword1!")
	_, _ = client.Login(ctx, adminEmail, "WrongPassword1!")
	_, err := client.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)

	ops, err := client.PlatformLogin(ctx, platformEmail, platformPassword)
	require.NoError(t, err)

	events, err := ops.ListSecurityEvents(ctx, admin.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	// Newest first: the successful login precedes the failures.
	require.Equal(t, "login_success", events[0].Kind)
	require.True(t, events[0].Success)

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)

	stats, err := ops.GetSecurityStats(ctx, from, to, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, stats.Failures, 2)
	require.GreaterOrEqual(t, stats.Successes, 2)
	require.GreaterOrEqual(t, stats.DistinctEmails, 2)

	// Tenant scoping drops the platform admin's events.
	tenantID := "tenant-01"
	scoped, err := ops.GetSecurityStats(ctx, from, to, &tenantID)
	require.NoError(t, err)
	require.Less(t, scoped.Total, stats.Total)
	require.GreaterOrEqual(t, scoped.Failures, 2)
}
