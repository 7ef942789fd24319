package gatekeep_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opswell/gatekeep/internal/auth/domain"
	authhttp "github.com/opswell/gatekeep/internal/auth/http"
	"github.com/opswell/gatekeep/internal/auth/ipguard"
	"github.com/opswell/gatekeep/internal/auth/notify"
	"github.com/opswell/gatekeep/internal/auth/service"
	"github.com/opswell/gatekeep/internal/auth/store"
	"github.com/opswell/gatekeep/internal/auth/store/drivers/sqlite"
	"github.com/opswell/gatekeep/pkg/authsdk"
	"github.com/opswell/gatekeep/pkg/cryptox"
	"github.com/opswell/gatekeep/pkg/httpx"
	"github.com/opswell/gatekeep/pkg/idx"
	"github.com/opswell/gatekeep/pkg/jwtx"
	"github.com/opswell/gatekeep/pkg/passpolicy"
	"github.com/opswell/gatekeep/pkg/slogx"
)

/*
 * End-to-end tests for the gatekeep service: a full stack (SQLite store,
 * services, router) behind an httptest server, driven through the SDK.
 */

const (
	adminEmail    = "owner@acme.test"
	adminPassword = "Dkwpfmqa9!xQ"

	platformEmail    = "ops@gatekeep.test"
	platformPassword = "Jrtw7mLe2#pV"

	// Failures before lockout in the e2e configuration.
	lockoutThreshold = 3
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "gatekeep-e2e")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// testServer is one fully wired service instance.
type testServer struct {
	URL string

	Store    store.Store
	Security *service.SecurityService
	IPGuard  ipguard.Cache
}

// setupServer wires a complete service against a throwaway database and
// returns its base URL. Rate limits are raised so tests can make rapid
// requests without tripping the transport throttle; the rate limit test
// builds its own server.
func setupServer(t *testing.T) *testServer {
	t.Helper()
	return setupServerWithLimits(t, generousLimit(), generousLimit())
}

func setupServerWithLimits(t *testing.T, strict, moderate httpx.RateLimitConfig) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "gatekeep.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	codec, err := jwtx.NewCodec([]byte("0123456789abcdef0123456789abcdef"), "gatekeep-e2e")
	require.NoError(t, err)

	guard := ipguard.NewMemoryCache(ipguard.Config{
		FailedAttemptThreshold: 50,
		AttemptWindow:          15 * time.Minute,
		BlockDuration:          time.Hour,
	})

	sec := &service.SecurityService{
		Store:                    st,
		Sink:                     notify.LogSink{},
		BruteForceThreshold:      5,
		BruteForceWindow:         15 * time.Minute,
		SuspiciousWindow:         24 * time.Hour,
		SuspiciousFailureLimit:   20,
		SuspiciousDistinctEmails: 5,
	}

	tokens := &service.RefreshTokenService{
		Store:           st,
		Security:        sec,
		RefreshTTL:      30 * 24 * time.Hour,
		MaxActiveTokens: 5,
	}

	login := &service.LoginService{
		Store:            st,
		Tokens:           tokens,
		Security:         sec,
		IPGuard:          guard,
		Codec:            codec,
		Policy:           passpolicy.New(passpolicy.DefaultConfig()),
		AccessTTL:        15 * time.Minute,
		StepUpTTL:        5 * time.Minute,
		LockoutThreshold: lockoutThreshold,
		LockoutDuration:  30 * time.Minute,
	}

	logger := slogx.New(slogx.Config{
		Service: "gatekeep",
		Version: "e2e",
		Env:     "test",
		Level:   "error",
		Format:  "text",
	})

	router := authhttp.NewRouter(codec, "e2e", st, logger)
	router.LoginService = login
	router.TokenService = tokens
	router.SecurityService = sec
	router.IPGuard = guard
	router.Strict = strict
	router.Moderate = moderate
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{URL: srv.URL, Store: st, Security: sec, IPGuard: guard}
}

func generousLimit() httpx.RateLimitConfig {
	return httpx.RateLimitConfig{
		RequestsPerWindow: 1000,
		Window:            time.Minute,
		Burst:             1000,
	}
}

// seedTenantAdmin creates a tenant administrator account directly in the
// store.
func seedTenantAdmin(t *testing.T, st store.Store, email, password string) domain.Admin {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	tenantID := "tenant-01"
	a := domain.Admin{
		ID:           idx.New().String(),
		Kind:         domain.AdminKindTenant,
		Email:        email,
		PasswordHash: hash,
		TenantID:     &tenantID,
		TenantSlug:   "acme",
		Role:         "owner",
	}
	require.NoError(t, st.Admins().CreateAdmin(context.Background(), a))
	return a
}

// seedPlatformAdmin creates a platform operator holding the security
// permissions.
func seedPlatformAdmin(t *testing.T, st store.Store, email, password string) domain.Admin {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	a := domain.Admin{
		ID:           idx.New().String(),
		Kind:         domain.AdminKindPlatform,
		Email:        email,
		PasswordHash: hash,
		Permissions:  []string{authhttp.PermSecurityRead, authhttp.PermSecurityWrite},
	}
	require.NoError(t, st.Admins().CreateAdmin(context.Background(), a))
	return a
}

// requireAPIError asserts err is an *APIError with the given status and code.
func requireAPIError(t *testing.T, err error, status int, code string) *authsdk.APIError {
	t.Helper()

	apiErr, ok := err.(*authsdk.APIError)
	require.True(t, ok, "expected *authsdk.APIError, got %T: %v", err, err)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, code, apiErr.Code)
	return apiErr
}
