// Package jwtx issues and validates the platform's signed session tokens.
// Tokens are HS256-signed with a shared secret held in configuration; the
// secret never appears inside a token. Each audience gets its own claim
// extras so the compiler, not a claim bag, decides which fields exist.
package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audience values. Validation requires an exact audience match so a tenant
// session can never be presented where a platform-admin session is expected.
const (
	AudienceTenant        = "tenant"
	AudiencePlatformAdmin = "platform-admin"
	AudienceStepUp        = "step-up-verification"
)

// PurposeStepUp pins verification tokens to a single use. An ordinary
// session token never carries it, so it cannot be replayed as a step-up
// proof.
const PurposeStepUp = "step_up_verification"

// OwnerKind mirrors domain.AdminKind without importing the domain package.
const (
	OwnerTenantAdmin   = "tenant-admin"
	OwnerPlatformAdmin = "platform-admin"
)

// Claims are the claims embedded in every token this service signs.
type Claims struct {
	jwt.RegisteredClaims

	Email     string `json:"email,omitempty"`
	OwnerKind string `json:"kind,omitempty"`

	// Purpose is set only on verification tokens.
	Purpose string `json:"purpose,omitempty"`

	// Tenant-session extras.
	TenantID   string `json:"tenant_id,omitempty"`
	TenantSlug string `json:"tenant_slug,omitempty"`
	Role       string `json:"role,omitempty"`

	// Platform-admin extras.
	Permissions []string `json:"permissions,omitempty"`
}

// SessionParams describes a session token to be issued.
type SessionParams struct {
	Subject   string
	Email     string
	Audience  string
	OwnerKind string
	TTL       time.Duration

	// Tenant sessions only.
	TenantID   string
	TenantSlug string
	Role       string

	// Platform-admin sessions only.
	Permissions []string
}

// newJTI returns a URL-safe random identifier for the "jti" claim.
func newJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
