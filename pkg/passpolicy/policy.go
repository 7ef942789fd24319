// Package passpolicy validates candidate passwords against a configurable
// rule set and scores their strength. It is pure: no I/O, no clock, no
// external calls.
package passpolicy

import (
	"fmt"
	"strings"
	"unicode"
)

// Config enumerates the policy rules. Each character-class requirement can
// be toggled independently.
type Config struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultConfig returns the platform default policy.
func DefaultConfig() Config {
	return Config{
		MinLength:      8,
		MaxLength:      128,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// Strength is a coarse five-level score for display purposes. It is not a
// policy decision; a VeryStrong password can still fail Validate.
type Strength int

const (
	VeryWeak Strength = iota
	Weak
	Fair
	Strong
	VeryStrong
)

func (s Strength) String() string {
	switch s {
	case VeryWeak:
		return "very_weak"
	case Weak:
		return "weak"
	case Fair:
		return "fair"
	case Strong:
		return "strong"
	case VeryStrong:
		return "very_strong"
	default:
		return "unknown"
	}
}

// Policy applies a Config plus the built-in common-password set.
type Policy struct {
	cfg    Config
	common map[string]struct{}
}

// New builds a Policy from cfg. Zero-valued length bounds fall back to the
// defaults so a partially filled Config stays usable.
func New(cfg Config) *Policy {
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultConfig().MinLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultConfig().MaxLength
	}

	common := make(map[string]struct{}, len(commonPasswords))
	for _, p := range commonPasswords {
		common[p] = struct{}{}
	}
	return &Policy{cfg: cfg, common: common}
}

// Validate runs every configured check and returns ok plus one
// human-readable reason per failing check. It never short-circuits, so the
// caller can report all violations at once.
func (p *Policy) Validate(password string) (bool, []string) {
	var reasons []string

	runes := []rune(password)
	if len(runes) < p.cfg.MinLength {
		reasons = append(reasons, fmt.Sprintf("must be at least %d characters long", p.cfg.MinLength))
	}
	if len(runes) > p.cfg.MaxLength {
		reasons = append(reasons, fmt.Sprintf("must be at most %d characters long", p.cfg.MaxLength))
	}

	hasUpper, hasLower, hasDigit, hasSpecial := classes(password)
	if p.cfg.RequireUpper && !hasUpper {
		reasons = append(reasons, "must contain an uppercase letter")
	}
	if p.cfg.RequireLower && !hasLower {
		reasons = append(reasons, "must contain a lowercase letter")
	}
	if p.cfg.RequireDigit && !hasDigit {
		reasons = append(reasons, "must contain a digit")
	}
	if p.cfg.RequireSpecial && !hasSpecial {
		reasons = append(reasons, "must contain a special character")
	}

	if p.IsCommon(password) {
		reasons = append(reasons, "is too common")
	}
	if hasSequentialRun(password) {
		reasons = append(reasons, "must not contain sequential characters (e.g. abc, 321)")
	}
	if hasRepeatRun(password) {
		reasons = append(reasons, "must not repeat the same character 3 or more times")
	}

	return len(reasons) == 0, reasons
}

// Strength computes an additive score bucketed into five levels: length
// tiers, one point per character class, a bonus for all four classes, and
// penalties for common passwords and sequential or repeated runs.
func (p *Policy) Strength(password string) Strength {
	score := 0

	n := len([]rune(password))
	if n >= 8 {
		score++
	}
	if n >= 12 {
		score++
	}
	if n >= 16 {
		score++
	}

	hasUpper, hasLower, hasDigit, hasSpecial := classes(password)
	for _, ok := range []bool{hasUpper, hasLower, hasDigit, hasSpecial} {
		if ok {
			score++
		}
	}
	if hasUpper && hasLower && hasDigit && hasSpecial {
		score++
	}

	if p.IsCommon(password) {
		score -= 3
	}
	if hasSequentialRun(password) {
		score--
	}
	if hasRepeatRun(password) {
		score--
	}

	switch {
	case score <= 1:
		return VeryWeak
	case score <= 3:
		return Weak
	case score <= 5:
		return Fair
	case score <= 7:
		return Strong
	default:
		return VeryStrong
	}
}

// IsCommon reports membership in the common-password set, matched exactly
// or lowercased.
func (p *Policy) IsCommon(password string) bool {
	if _, ok := p.common[password]; ok {
		return true
	}
	_, ok := p.common[strings.ToLower(password)]
	return ok
}

func classes(password string) (hasUpper, hasLower, hasDigit, hasSpecial bool) {
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	return
}

// hasSequentialRun reports a run of 3+ consecutively ascending or descending
// letters or digits, case-insensitive ("abc", "CBA", "789", "321").
func hasSequentialRun(password string) bool {
	runes := []rune(strings.ToLower(password))
	asc, desc := 1, 1
	for i := 1; i < len(runes); i++ {
		if !isSequencable(runes[i]) || !isSequencable(runes[i-1]) {
			asc, desc = 1, 1
			continue
		}
		if runes[i] == runes[i-1]+1 {
			asc++
		} else {
			asc = 1
		}
		if runes[i] == runes[i-1]-1 {
			desc++
		} else {
			desc = 1
		}
		if asc >= 3 || desc >= 3 {
			return true
		}
	}
	return false
}

func isSequencable(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// hasRepeatRun reports 3+ identical characters in a row.
func hasRepeatRun(password string) bool {
	runes := []rune(password)
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
