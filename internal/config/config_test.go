package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Port:                     8080,
		InternalPort:             8081,
		LogLevel:                 "info",
		Env:                      "development",
		BackendEndpoint:          "http://127.0.0.1:8232",
		CredentialSecret:         strings.Repeat("s", 32),
		ChallengeAlgorithm:       "sha-256",
		RequestSizeLimit:         1024,
		FailureThreshold:         5,
		HalfOpenMaxProbes:        1,
		BackendMaxRetries:        3,
		RateLimitPerSecond:       10,
		PaymentsMinConfirmations: 1,
		PaymentsEnabled:          false,
		ShutdownTimeout:          1,
	}
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsProductionDevelopmentMode(t *testing.T) {
	cfg := validConfig()
	cfg.Env = "production"
	cfg.DevelopmentMode = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEVELOPMENT_MODE")
}

func TestValidate_RejectsShortCredentialSecret(t *testing.T) {
	cfg := validConfig()
	cfg.CredentialSecret = "too-short"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CREDENTIAL_SECRET")
}

func TestValidate_RejectsUnknownChallengeAlgorithm(t *testing.T) {
	cfg := validConfig()
	cfg.ChallengeAlgorithm = "md5"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHALLENGE_ALGORITHM")
}

func TestValidate_RejectsSamePortAndInternalPort(t *testing.T) {
	cfg := validConfig()
	cfg.InternalPort = cfg.Port
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INTERNAL_PORT")
}

func TestValidate_RequiresDepositAddressesWhenPaymentsEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.PaymentsEnabled = true
	cfg.PaymentsDepositAddresses = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYMENTS_DEPOSIT_ADDRESSES")
}

func TestRedacted_MasksSecretsButKeepsOtherFields(t *testing.T) {
	cfg := validConfig()
	cfg.RedisPassword = "hunter2"
	cfg.ServiceName = "zecgate-test"

	out := cfg.Redacted()

	assert.NotContains(t, out, cfg.CredentialSecret)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "zecgate-test")
	assert.Contains(t, out, cfg.BackendEndpoint)
}

func TestIsDevelopmentIsProduction(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestUsesDurableStore(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.UsesDurableStore())
	cfg.RedisAddr = "127.0.0.1:6379"
	assert.True(t, cfg.UsesDurableStore())
}
