package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zecgate/gateway/internal/domain/security"
	"github.com/zecgate/gateway/internal/observability"
	"github.com/zecgate/gateway/internal/ratelimit"
	"github.com/zecgate/gateway/internal/token"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func newTokenService(t *testing.T, cfg token.Config) *token.Service {
	t.Helper()
	if len(cfg.Secret) == 0 {
		cfg.Secret = secret
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "zecgate"
	}
	if cfg.Audience == "" {
		cfg.Audience = "zecgate-clients"
	}
	if cfg.AnonymousExpiry == 0 {
		cfg.AnonymousExpiry = time.Minute
	}
	if cfg.PowExpiry == 0 {
		cfg.PowExpiry = time.Hour
	}
	if cfg.PaymentExpiry == 0 {
		cfg.PaymentExpiry = 24 * time.Hour
	}
	limiter := ratelimit.New(ratelimit.Config{
		Default:  ratelimit.Rate{PerSecond: 1000, Burst: 1000},
		Issuance: ratelimit.Rate{PerSecond: 1000, Burst: 1000},
	})
	t.Cleanup(limiter.Stop)
	return token.New(cfg, limiter, observability.NewNopLoggerInterface())
}

func authenticate(t *testing.T, raw string) security.BearerCredential {
	t.Helper()
	authn := security.NewJWTAuthenticator(secret, "zecgate", "zecgate-clients", 0, nil)
	cred, err := authn.Authenticate(context.Background(), raw, time.Now())
	require.NoError(t, err)
	return cred
}

// Invariant 10 (spec §8): every minted credential round-trips through
// Authenticate regardless of which issuance mode produced it.
func TestMintAnonymous_RoundTrips(t *testing.T) {
	svc := newTokenService(t, token.Config{AnonymousGrants: []string{security.PermissionRead}})
	raw, cred, err := svc.MintAnonymous(context.Background(), "caller-1")
	require.NoError(t, err)
	assert.Equal(t, "caller-1", cred.Subject)
	assert.Contains(t, cred.Permissions, security.PermissionRead)

	got := authenticate(t, raw)
	assert.Equal(t, cred.CredentialID, got.CredentialID)
	assert.True(t, got.HasPermission(security.PermissionRead))
}

func TestMintAnonymous_QuotaExceededReturnsError(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{
		Default:  ratelimit.Rate{PerSecond: 1000, Burst: 1000},
		Issuance: ratelimit.Rate{PerSecond: 0.0001, Burst: 1},
	})
	defer limiter.Stop()
	svc := token.New(token.Config{
		Secret: secret, Issuer: "zecgate", Audience: "zecgate-clients",
		AnonymousExpiry: time.Minute,
	}, limiter, observability.NewNopLoggerInterface())

	_, _, err := svc.MintAnonymous(context.Background(), "caller-1")
	require.NoError(t, err)

	_, _, err = svc.MintAnonymous(context.Background(), "caller-1")
	assert.ErrorIs(t, err, token.ErrIssuanceQuotaExceeded)
}

func TestMintProofOfWork_GrantsPowValidatedAndRateMultiplier(t *testing.T) {
	svc := newTokenService(t, token.Config{})
	raw, cred, err := svc.MintProofOfWork(context.Background(), "caller-1", 2.5)
	require.NoError(t, err)
	assert.Contains(t, cred.Permissions, security.PermissionPowValidated)
	assert.Contains(t, cred.Permissions, "rate_multiplier_2.5")

	got := authenticate(t, raw)
	assert.True(t, got.HasPermission(security.PermissionPowValidated))
}

func TestMintProvisional_PrependsProvisionalPermission(t *testing.T) {
	svc := newTokenService(t, token.Config{})
	_, cred, err := svc.MintProvisional(context.Background(), "caller-1", []string{security.PermissionRead, security.PermissionPaid})
	require.NoError(t, err)
	assert.Equal(t, []string{security.PermissionProvisional, security.PermissionRead, security.PermissionPaid}, cred.Permissions)
}

func TestMintFinal_PrependsPaidPermission(t *testing.T) {
	svc := newTokenService(t, token.Config{})
	_, cred, err := svc.MintFinal(context.Background(), "caller-1", []string{security.PermissionRead})
	require.NoError(t, err)
	assert.Equal(t, []string{security.PermissionPaid, security.PermissionRead}, cred.Permissions)
}

func TestMint_UsesConfiguredIDGenerator(t *testing.T) {
	calls := 0
	svc := newTokenService(t, token.Config{IDGenerator: func() string {
		calls++
		return "fixed-id"
	}})
	_, cred, err := svc.MintAnonymous(context.Background(), "caller-1")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", cred.CredentialID)
	assert.Equal(t, 1, calls)
}
