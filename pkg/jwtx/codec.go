package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultLeeway is the clock-skew allowance applied when validating exp/nbf.
const DefaultLeeway = 30 * time.Second

// MinSecretBytes is the smallest accepted HS256 secret. Anything shorter
// than the hash width weakens the HMAC.
const MinSecretBytes = 32

var (
	// ErrInvalidToken is the single failure returned for any malformed,
	// mis-signed, wrong-audience, or expired token. Collapsing the cases
	// keeps callers from leaking which check failed.
	ErrInvalidToken = errors.New("jwtx: invalid token")

	errSecretTooShort = errors.New("jwtx: signing secret must be at least 32 bytes")
)

// Codec signs and validates tokens with a single symmetric secret.
type Codec struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// Option adjusts Codec construction.
type Option func(*Codec)

// WithLeeway overrides the clock-skew allowance.
func WithLeeway(d time.Duration) Option {
	return func(c *Codec) { c.leeway = d }
}

// WithTimeFunc overrides the clock; tests use this to validate expiry
// behaviour deterministically.
func WithTimeFunc(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a Codec for the given secret and issuer name.
func NewCodec(secret []byte, issuer string, opts ...Option) (*Codec, error) {
	if len(secret) < MinSecretBytes {
		return nil, errSecretTooShort
	}
	c := &Codec{
		secret: secret,
		issuer: issuer,
		leeway: DefaultLeeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IssueSession builds and signs a session token. Issued-at, not-before, and
// expiry are always stamped here; callers supply only the TTL.
func (c *Codec) IssueSession(p SessionParams) (string, error) {
	now := c.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   p.Subject,
			Audience:  jwt.ClaimStrings{p.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.TTL)),
			ID:        newJTI(),
		},
		Email:       p.Email,
		OwnerKind:   p.OwnerKind,
		TenantID:    p.TenantID,
		TenantSlug:  p.TenantSlug,
		Role:        p.Role,
		Permissions: p.Permissions,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// IssueVerification mints a short-lived step-up token pinned to
// PurposeStepUp. It proves completion of a secondary check and nothing else.
func (c *Codec) IssueVerification(userID, ownerKind, email string, ttl time.Duration) (string, error) {
	now := c.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{AudienceStepUp},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        newJTI(),
		},
		Email:     email,
		OwnerKind: ownerKind,
		Purpose:   PurposeStepUp,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Validate verifies signature, issuer, audience, and expiry (with leeway).
// Every failure collapses to ErrInvalidToken.
func (c *Codec) Validate(token, expectedAudience string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(expectedAudience),
		jwt.WithLeeway(c.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	var claims Claims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}

// ValidateVerification is Validate for the step-up audience, additionally
// rejecting any token whose purpose marker is missing or wrong.
func (c *Codec) ValidateVerification(token string) (Claims, error) {
	claims, err := c.Validate(token, AudienceStepUp)
	if err != nil {
		return Claims{}, err
	}
	if claims.Purpose != PurposeStepUp {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// PeekExpiry decodes the expiry claim without verifying the signature. For
// display and debugging only; never an authorization input. Malformed input
// yields the zero time.
func PeekExpiry(token string) time.Time {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
