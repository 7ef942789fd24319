package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opswell/gatekeep/pkg/passpolicy"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	require.Equal(t, "gatekeep", cfg.Issuer)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, passpolicy.DefaultConfig(), cfg.PasswordPolicy)
}

func TestLoadConfigPasswordPolicyOverrides(t *testing.T) {
	t.Setenv("GATEKEEP_PASSWORD_MIN_LENGTH", "12")
	t.Setenv("GATEKEEP_PASSWORD_MAX_LENGTH", "64")
	t.Setenv("GATEKEEP_PASSWORD_REQUIRE_SPECIAL", "false")
	t.Setenv("GATEKEEP_PASSWORD_REQUIRE_DIGIT", "false")

	cfg := LoadConfig()

	require.Equal(t, passpolicy.Config{
		MinLength:      12,
		MaxLength:      64,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   false,
		RequireSpecial: false,
	}, cfg.PasswordPolicy)
}

func TestLoadConfigBoolFallsBackOnGarbage(t *testing.T) {
	t.Setenv("GATEKEEP_PASSWORD_REQUIRE_UPPER", "definitely")

	cfg := LoadConfig()
	require.True(t, cfg.PasswordPolicy.RequireUpper)
}
