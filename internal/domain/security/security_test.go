package security_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zecgate/gateway/internal/domain/security"
)

type stubRevocation struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocation) IsRevoked(_ context.Context, credentialID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.revoked[credentialID], nil
}

var secret = []byte("0123456789abcdef0123456789abcdef")

func freshCredential(now time.Time) security.BearerCredential {
	return security.BearerCredential{
		Subject:      "caller-1",
		Issuer:       "zecgate",
		Audience:     "zecgate-clients",
		IssuedAt:     now,
		NotBefore:    now,
		ExpiresAt:    now.Add(time.Hour),
		CredentialID: "cred-1",
		Permissions:  []string{security.PermissionRead},
	}
}

// Invariant 10 (spec §8): a credential minted by Sign and fed back through
// Authenticate round-trips to an equivalent, usable BearerCredential.
func TestSignAndAuthenticate_RoundTrips(t *testing.T) {
	now := time.Now()
	cred := freshCredential(now)
	raw, err := security.Sign(cred, secret)
	require.NoError(t, err)

	authn := security.NewJWTAuthenticator(secret, "zecgate", "zecgate-clients", 0, nil)
	got, err := authn.Authenticate(context.Background(), raw, now)
	require.NoError(t, err)

	assert.Equal(t, cred.Subject, got.Subject)
	assert.Equal(t, cred.CredentialID, got.CredentialID)
	assert.Equal(t, cred.Permissions, got.Permissions)
	assert.True(t, got.HasPermission(security.PermissionRead))
}

func TestAuthenticate_EmptyTokenIsMalformed(t *testing.T) {
	authn := security.NewJWTAuthenticator(secret, "", "", 0, nil)
	_, err := authn.Authenticate(context.Background(), "", time.Now())
	var authErr *security.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, security.ReasonMalformed, authErr.Reason)
}

func TestAuthenticate_WrongSecretIsSignatureFailure(t *testing.T) {
	now := time.Now()
	raw, err := security.Sign(freshCredential(now), secret)
	require.NoError(t, err)

	authn := security.NewJWTAuthenticator([]byte("a-completely-different-secret-k"), "", "", 0, nil)
	_, err = authn.Authenticate(context.Background(), raw, now)
	var authErr *security.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, security.ReasonSignature, authErr.Reason)
}

func TestAuthenticate_ExpiredCredentialIsExpiryFailure(t *testing.T) {
	now := time.Now()
	cred := freshCredential(now)
	cred.ExpiresAt = now.Add(-time.Second)
	raw, err := security.Sign(cred, secret)
	require.NoError(t, err)

	authn := security.NewJWTAuthenticator(secret, "", "", 0, nil)
	_, err = authn.Authenticate(context.Background(), raw, now)
	var authErr *security.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, security.ReasonExpiry, authErr.Reason)
}

func TestAuthenticate_NotYetValidIsExpiryFailure(t *testing.T) {
	now := time.Now()
	cred := freshCredential(now)
	cred.NotBefore = now.Add(time.Hour)
	raw, err := security.Sign(cred, secret)
	require.NoError(t, err)

	authn := security.NewJWTAuthenticator(secret, "", "", 0, nil)
	_, err = authn.Authenticate(context.Background(), raw, now)
	var authErr *security.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, security.ReasonExpiry, authErr.Reason)
}

func TestAuthenticate_ClockSkewToleratesSmallExpiryOverrun(t *testing.T) {
	now := time.Now()
	cred := freshCredential(now)
	cred.ExpiresAt = now.Add(-2 * time.Second)
	raw, err := security.Sign(cred, secret)
	require.NoError(t, err)

	authn := security.NewJWTAuthenticator(secret, "", "", 5*time.Second, nil)
	_, err = authn.Authenticate(context.Background(), raw, now)
	assert.NoError(t, err, "a clock skew leeway must tolerate a small expiry overrun")
}

func TestAuthenticate_WrongIssuerRejected(t *testing.T) {
	now := time.Now()
	raw, err := security.Sign(freshCredential(now), secret)
	require.NoError(t, err)

	authn := security.NewJWTAuthenticator(secret, "someone-else", "", 0, nil)
	_, err = authn.Authenticate(context.Background(), raw, now)
	require.Error(t, err)
}

func TestAuthenticate_RevokedCredentialRejected(t *testing.T) {
	now := time.Now()
	cred := freshCredential(now)
	raw, err := security.Sign(cred, secret)
	require.NoError(t, err)

	rev := &stubRevocation{revoked: map[string]bool{cred.CredentialID: true}}
	authn := security.NewJWTAuthenticator(secret, "", "", 0, rev)
	_, err = authn.Authenticate(context.Background(), raw, now)
	var authErr *security.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, security.ReasonRevoked, authErr.Reason)
}

func TestAuthenticate_MissingCredentialIDIsMalformed(t *testing.T) {
	now := time.Now()
	cred := freshCredential(now)
	cred.CredentialID = ""
	raw, err := security.Sign(cred, secret)
	require.NoError(t, err)

	authn := security.NewJWTAuthenticator(secret, "", "", 0, nil)
	_, err = authn.Authenticate(context.Background(), raw, now)
	var authErr *security.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, security.ReasonMalformed, authErr.Reason)
}

func TestContext_HasAllPermissions(t *testing.T) {
	c := &security.Context{GrantedPermissions: map[string]struct{}{"read": {}, "write": {}}}
	assert.True(t, c.HasAllPermissions([]string{"read"}))
	assert.True(t, c.HasAllPermissions([]string{"read", "write"}))
	assert.False(t, c.HasAllPermissions([]string{"read", "paid"}))
}

func TestContext_HasAllPermissions_EmptyRequiredAlwaysSatisfied(t *testing.T) {
	c := &security.Context{}
	assert.True(t, c.HasAllPermissions(nil))
}

func TestContext_Bypassed_RequiresBothDevelopmentModeAndLoopback(t *testing.T) {
	cases := []struct {
		name     string
		dev      bool
		addr     string
		expected bool
	}{
		{"loopback and dev mode", true, "127.0.0.1:5000", true},
		{"loopback literal host", true, "localhost", true},
		{"ipv6 loopback", true, "[::1]:9000", true},
		{"dev mode but remote address", true, "203.0.113.5", false},
		{"loopback but dev mode off", false, "127.0.0.1", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &security.Context{DevelopmentMode: tc.dev, CallerAddress: tc.addr}
			assert.Equal(t, tc.expected, c.Bypassed())
		})
	}
}

func TestIsLoopback_RejectsArbitraryRemoteAddress(t *testing.T) {
	assert.False(t, security.IsLoopback("8.8.8.8"))
}
