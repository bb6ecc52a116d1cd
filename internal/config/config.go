// Package config provides environment-based configuration loading for the gateway.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/zecgate/gateway/internal/domain"
	"github.com/zecgate/gateway/internal/shared/redact"
)

var configRedactor = redact.NewPIIRedactor(domain.RedactorConfig{EmailMode: domain.EmailModeFull})

// Config holds every configuration value the gateway consumes. Required
// fields cause startup failure if missing; everything else has a default
// matching the teacher's conservative, explicit-default style.
type Config struct {
	Port         int    `envconfig:"PORT" default:"8080"`
	InternalPort int    `envconfig:"INTERNAL_PORT" default:"8081"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	Env          string `envconfig:"ENV" default:"development"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"zecgate"`

	// development_mode gates the loopback authentication bypass. Must be
	// explicitly enabled; never implied by ENV=development alone.
	DevelopmentMode bool `envconfig:"DEVELOPMENT_MODE" default:"false"`

	// Backend daemon connection.
	BackendEndpoint          string        `envconfig:"BACKEND_ENDPOINT" required:"true"`
	BackendPerAttemptTimeout time.Duration `envconfig:"BACKEND_PER_ATTEMPT_TIMEOUT" default:"5s"`
	BackendMaxRetries        int           `envconfig:"BACKEND_MAX_RETRIES" default:"3"`
	BackendRetryInitialDelay time.Duration `envconfig:"BACKEND_RETRY_INITIAL_DELAY" default:"100ms"`
	BackendRetryMaxDelay     time.Duration `envconfig:"BACKEND_RETRY_MAX_DELAY" default:"2s"`

	// Circuit breaker.
	FailureThreshold  uint32        `envconfig:"FAILURE_THRESHOLD" default:"5"`
	RecoveryTimeout   time.Duration `envconfig:"RECOVERY_TIMEOUT" default:"30s"`
	HalfOpenMaxProbes uint32        `envconfig:"HALF_OPEN_MAX_PROBES" default:"1"`

	// Request handling.
	RequestSizeLimit int64         `envconfig:"REQUEST_SIZE_LIMIT" default:"1048576"`
	RequestTimeout   time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`

	// Credentials.
	CredentialSecret        string        `envconfig:"CREDENTIAL_SECRET" required:"true"`
	CredentialIssuer        string        `envconfig:"CREDENTIAL_ISSUER" default:"zecgate"`
	CredentialAudience      string        `envconfig:"CREDENTIAL_AUDIENCE" default:"zecgate-clients"`
	CredentialClockSkew     time.Duration `envconfig:"CREDENTIAL_CLOCK_SKEW" default:"5s"`
	CredentialExpiryDefault time.Duration `envconfig:"CREDENTIAL_EXPIRY_DEFAULT" default:"15m"`
	IssuanceQuotaPerMinute  float64       `envconfig:"ISSUANCE_QUOTA_PER_MINUTE" default:"5"`
	IssuanceQuotaBurst      float64       `envconfig:"ISSUANCE_QUOTA_BURST" default:"5"`

	// Proof-of-work challenge.
	ChallengeTTL            time.Duration `envconfig:"CHALLENGE_TTL" default:"2m"`
	ChallengeDifficultyBits int           `envconfig:"CHALLENGE_DIFFICULTY_BITS" default:"16"`
	ChallengeAlgorithm      string        `envconfig:"CHALLENGE_ALGORITHM" default:"sha-256"`
	PowCredentialExpiry     time.Duration `envconfig:"POW_CREDENTIAL_EXPIRY" default:"1h"`
	PowRateMultiplier       float64       `envconfig:"POW_RATE_MULTIPLIER" default:"2.0"`

	// Payments.
	PaymentsEnabled           bool          `envconfig:"PAYMENTS_ENABLED" default:"true"`
	PaymentsMinConfirmations  int           `envconfig:"PAYMENTS_MIN_CONFIRMATIONS" default:"6"`
	PaymentsSessionTTL        time.Duration `envconfig:"PAYMENTS_SESSION_TTL" default:"1h"`
	PaymentsRequireViewingKey bool          `envconfig:"PAYMENTS_REQUIRE_VIEWING_KEY" default:"true"`
	PaymentsCredentialExpiry  time.Duration `envconfig:"PAYMENTS_CREDENTIAL_EXPIRY" default:"720h"`
	PaymentsViewingKeysPresent bool          `envconfig:"PAYMENTS_VIEWING_KEYS_PRESENT" default:"false"`
	PaymentsDepositAddresses   []string      `envconfig:"PAYMENTS_DEPOSIT_ADDRESSES"`
	PaymentsPollInterval       time.Duration `envconfig:"PAYMENTS_POLL_INTERVAL" default:"15s"`
	PaymentsStandardTierAmount float64       `envconfig:"PAYMENTS_STANDARD_TIER_AMOUNT" default:"0.01"`
	PaymentsPremiumTierAmount  float64       `envconfig:"PAYMENTS_PREMIUM_TIER_AMOUNT" default:"0.1"`

	// Response cache.
	CacheDefaultTTL              time.Duration `envconfig:"CACHE_DEFAULT_TTL" default:"10s"`
	CacheMaxBytes                int           `envconfig:"CACHE_MAX_BYTES" default:"16777216"`
	CacheServeStaleOnBreakerOpen bool          `envconfig:"CACHE_SERVE_STALE_ON_BREAKER_OPEN" default:"false"`

	// Rate limiting. RateLimit* feeds the Orchestrator's per-caller/per-method
	// token buckets; IPRateLimit* is the coarse, per-IP chi middleware guard
	// applied ahead of JSON-RPC parsing.
	RateLimitPerSecond   float64 `envconfig:"RATE_LIMIT_PER_SECOND" default:"10"`
	RateLimitBurst       float64 `envconfig:"RATE_LIMIT_BURST" default:"20"`
	IPRateLimitPerSecond int     `envconfig:"IP_RATE_LIMIT_PER_SECOND" default:"50"`
	IPRateLimitBurst     int     `envconfig:"IP_RATE_LIMIT_BURST" default:"100"`

	// Trust proxy headers for caller-address derivation; empty means use the
	// transport peer address directly.
	TrustedProxyHeaders []string `envconfig:"TRUSTED_PROXY_HEADERS"`

	// Durable store. Empty RedisAddr means revocation records and payment
	// sessions use the in-process stores; rate buckets and the response cache
	// are always in-process.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// HTTP server timeouts.
	HTTPReadTimeout       time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout      time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	HTTPIdleTimeout       time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	HTTPReadHeaderTimeout time.Duration `envconfig:"HTTP_READ_HEADER_TIMEOUT" default:"10s"`
	ShutdownTimeout       time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// Redacted returns a copy of the Config safe to log: every field matching a
// known secret pattern (credential_secret, redis_password, ...) is masked by
// the shared PII redactor rather than a hand-picked field list, so a future
// secret-shaped field is redacted by name instead of silently logged.
func (c *Config) Redacted() string {
	redacted := configRedactor.Redact(*c)
	b, err := json.Marshal(redacted)
	if err != nil {
		return "[REDACTED: config marshal failed]"
	}
	return string(b)
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate enforces invariants envconfig's struct tags cannot express.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: must be between 0 and 65535")
	}
	if c.InternalPort < 0 || c.InternalPort > 65535 {
		return fmt.Errorf("invalid INTERNAL_PORT: must be between 0 and 65535")
	}
	if c.InternalPort != 0 && c.InternalPort == c.Port {
		return fmt.Errorf("INTERNAL_PORT must differ from PORT")
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.CredentialSecret = strings.TrimSpace(c.CredentialSecret)
	c.ChallengeAlgorithm = strings.ToLower(strings.TrimSpace(c.ChallengeAlgorithm))

	switch c.Env {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("invalid ENV: must be one of development, staging, production, test")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: must be one of debug, info, warn, error")
	}
	switch c.ChallengeAlgorithm {
	case "sha-256", "blake3":
	default:
		return fmt.Errorf("invalid CHALLENGE_ALGORITHM: must be sha-256 or blake3")
	}

	if c.Env == "production" && c.DevelopmentMode {
		return fmt.Errorf("ENV=production must not set DEVELOPMENT_MODE=true")
	}
	if len(c.CredentialSecret) < 32 {
		return fmt.Errorf("CREDENTIAL_SECRET must be at least 32 bytes")
	}
	if c.RequestSizeLimit < 1 {
		return fmt.Errorf("invalid REQUEST_SIZE_LIMIT: must be greater than 0")
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("invalid FAILURE_THRESHOLD: must be greater than 0")
	}
	if c.HalfOpenMaxProbes < 1 {
		return fmt.Errorf("invalid HALF_OPEN_MAX_PROBES: must be greater than 0")
	}
	if c.BackendMaxRetries < 1 {
		return fmt.Errorf("invalid BACKEND_MAX_RETRIES: must be greater than 0")
	}
	if c.RateLimitPerSecond <= 0 {
		return fmt.Errorf("invalid RATE_LIMIT_PER_SECOND: must be greater than 0")
	}
	if c.PaymentsMinConfirmations < 1 {
		return fmt.Errorf("invalid PAYMENTS_MIN_CONFIRMATIONS: must be greater than 0")
	}
	if c.PaymentsEnabled && len(c.PaymentsDepositAddresses) == 0 {
		return fmt.Errorf("PAYMENTS_DEPOSIT_ADDRESSES must be set when PAYMENTS_ENABLED=true")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid SHUTDOWN_TIMEOUT: must be greater than 0")
	}
	return nil
}

// IsDevelopment returns true if running in development environment.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// UsesDurableStore reports whether a Redis backing store is configured.
func (c *Config) UsesDurableStore() bool { return strings.TrimSpace(c.RedisAddr) != "" }
