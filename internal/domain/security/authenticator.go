package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AllowedAlgorithm is the only JWT signing method the gateway accepts.
// Algorithm confusion attacks are prevented by refusing to parse any token
// signed with anything else, regardless of what its header claims.
const AllowedAlgorithm = "HS256"

// AuthFailureReason is a coarse, caller-safe reason for an authentication
// failure. It is logged as a structured security event and never carries
// signature or key material.
type AuthFailureReason string

// Coarse authentication failure reasons.
const (
	ReasonSignature AuthFailureReason = "signature"
	ReasonExpiry    AuthFailureReason = "expiry"
	ReasonRevoked   AuthFailureReason = "revoked"
	ReasonMalformed AuthFailureReason = "malformed"
)

// AuthError reports why a Bearer Credential failed verification.
type AuthError struct {
	Reason AuthFailureReason
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// RevocationChecker reports whether a credential id has been revoked. It is
// satisfied by internal/revocation.Store; declared here to avoid an import
// cycle between security and revocation.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, credentialID string) (bool, error)
}

// Authenticator verifies a raw bearer token string and returns the
// permissions it grants.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string, now time.Time) (BearerCredential, error)
}

type claims struct {
	jwt.RegisteredClaims
	CredentialID string   `json:"credential_id"`
	Permissions  []string `json:"permissions"`
}

// JWTAuthenticator validates Bearer Credentials signed with a process-wide
// HS256 secret, checking issuer, audience, expiry, not-before, and
// revocation status.
type JWTAuthenticator struct {
	secret     []byte
	issuer     string
	audience   string
	clockSkew  time.Duration
	revocation RevocationChecker
}

// NewJWTAuthenticator constructs a JWTAuthenticator. secret must be non-empty;
// revocation may be nil only in tests that do not exercise revocation.
func NewJWTAuthenticator(secret []byte, issuer, audience string, clockSkew time.Duration, revocation RevocationChecker) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret:     secret,
		issuer:     issuer,
		audience:   audience,
		clockSkew:  clockSkew,
		revocation: revocation,
	}
}

// Authenticate parses and validates rawToken. On any failure it returns a
// coarse *AuthError; it never reports which specific check failed beyond the
// four reason tags.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, rawToken string, now time.Time) (BearerCredential, error) {
	if rawToken == "" {
		return BearerCredential{}, &AuthError{Reason: ReasonMalformed}
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{AllowedAlgorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if a.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(a.audience))
	}
	if a.clockSkew > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(a.clockSkew))
	}

	var c claims
	token, err := jwt.ParseWithClaims(rawToken, &c, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, parserOpts...)
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenNotValidYet) {
			return BearerCredential{}, &AuthError{Reason: ReasonExpiry}
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenMalformed) {
			return BearerCredential{}, &AuthError{Reason: ReasonSignature}
		}
		return BearerCredential{}, &AuthError{Reason: ReasonMalformed}
	}
	if c.CredentialID == "" {
		return BearerCredential{}, &AuthError{Reason: ReasonMalformed}
	}

	if a.revocation != nil {
		revoked, rErr := a.revocation.IsRevoked(ctx, c.CredentialID)
		if rErr != nil {
			return BearerCredential{}, &AuthError{Reason: ReasonMalformed}
		}
		if revoked {
			return BearerCredential{}, &AuthError{Reason: ReasonRevoked}
		}
	}

	cred := BearerCredential{
		Subject:      c.Subject,
		Issuer:       c.Issuer,
		CredentialID: c.CredentialID,
		Permissions:  c.Permissions,
	}
	if len(c.Audience) > 0 {
		cred.Audience = c.Audience[0]
	}
	if c.IssuedAt != nil {
		cred.IssuedAt = c.IssuedAt.Time
	}
	if c.NotBefore != nil {
		cred.NotBefore = c.NotBefore.Time
	}
	if c.ExpiresAt != nil {
		cred.ExpiresAt = c.ExpiresAt.Time
	}
	return cred, nil
}

// Sign produces a signed JWT string for cred using secret. Used by the Token
// Service; kept alongside Authenticate since both share the claims shape.
func Sign(cred BearerCredential, secret []byte) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.Subject,
			Issuer:    cred.Issuer,
			Audience:  jwt.ClaimStrings{cred.Audience},
			IssuedAt:  jwt.NewNumericDate(cred.IssuedAt),
			NotBefore: jwt.NewNumericDate(cred.NotBefore),
			ExpiresAt: jwt.NewNumericDate(cred.ExpiresAt),
		},
		CredentialID: cred.CredentialID,
		Permissions:  cred.Permissions,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(secret)
}
