package passpolicy_test

import (
	"testing"

	"github.com/opswell/gatekeep/pkg/passpolicy"
	"github.com/stretchr/testify/require"
)

func TestValidateReportsAllViolations(t *testing.T) {
	p := passpolicy.New(passpolicy.DefaultConfig())

	ok, reasons := p.Validate("abc")
	require.False(t, ok)
	// length, uppercase, digit, special, sequential
	require.GreaterOrEqual(t, len(reasons), 4)
	require.Len(t, reasons, 5)
}

func TestValidateAcceptsGoodPassword(t *testing.T) {
	p := passpolicy.New(passpolicy.DefaultConfig())

	ok, reasons := p.Validate("Tr4vels!Widely")
	require.True(t, ok)
	require.Empty(t, reasons)
}

func TestValidateConfigurableClasses(t *testing.T) {
	cfg := passpolicy.DefaultConfig()
	cfg.RequireUpper = false
	cfg.RequireSpecial = false
	p := passpolicy.New(cfg)

	ok, reasons := p.Validate("plainword9")
	require.True(t, ok, "reasons: %v", reasons)

	// Same password fails under the stricter default policy.
	strict := passpolicy.New(passpolicy.DefaultConfig())
	ok, reasons = strict.Validate("plainword9")
	require.False(t, ok)
	require.Len(t, reasons, 2) // uppercase + special
}

func TestValidateRepeatAndSequentialRuns(t *testing.T) {
	p := passpolicy.New(passpolicy.DefaultConfig())

	t.Run("repeat run", func(t *testing.T) {
		ok, reasons := p.Validate("Gooodpas9!x")
		require.False(t, ok)
		require.Contains(t, reasons, "must not repeat the same character 3 or more times")
	})

	t.Run("descending sequence", func(t *testing.T) {
		ok, reasons := p.Validate("Zyx9!Kfmdq")
		require.False(t, ok)
		require.Contains(t, reasons, "must not contain sequential characters (e.g. abc, 321)")
	})

	t.Run("numeric sequence", func(t *testing.T) {
		ok, _ := p.Validate("Hm789!bwpa")
		require.False(t, ok)
	})
}

func TestIsCommon(t *testing.T) {
	p := passpolicy.New(passpolicy.DefaultConfig())

	require.True(t, p.IsCommon("password"))
	require.True(t, p.IsCommon("PASSWORD"), "match is case-insensitive")
	require.True(t, p.IsCommon("Qwerty123"))
	require.False(t, p.IsCommon("vfqkmdeyrsbq"))
}

func TestStrengthBuckets(t *testing.T) {
	p := passpolicy.New(passpolicy.DefaultConfig())

	cases := []struct {
		password string
		want     passpolicy.Strength
	}{
		{"abc", passpolicy.VeryWeak},
		{"password", passpolicy.VeryWeak}, // common penalty wipes the length point
		{"dkwpfmqa", passpolicy.Weak},     // length tier + lowercase only
		{"Dkwpfmqa9", passpolicy.Fair},    // three classes
		{"Dkwpfmqa9!", passpolicy.Strong}, // four classes + bonus
		{"Dkwpfmqa9!Ndkwep", passpolicy.VeryStrong},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, p.Strength(tc.password), "password %q", tc.password)
	}
}

func TestStrengthOrdering(t *testing.T) {
	require.Less(t, passpolicy.VeryWeak, passpolicy.Weak)
	require.Less(t, passpolicy.Strong, passpolicy.VeryStrong)
	require.Equal(t, "very_strong", passpolicy.VeryStrong.String())
}
