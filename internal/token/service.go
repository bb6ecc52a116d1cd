// Package token mints signed Bearer Credentials. Anonymous issuance is
// reachable from any caller (subject to a per-address quota); proof-of-work
// and payment-verified issuance are exported methods on Service, and the
// challenge and payment services are handed only the narrow
// ProofOfWorkMinter and PaymentMinter interfaces at construction time.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zecgate/gateway/internal/domain/security"
	"github.com/zecgate/gateway/internal/observability"
	"github.com/zecgate/gateway/internal/ratelimit"
)

// ErrIssuanceQuotaExceeded is returned when a caller address has exhausted
// its issuance bucket.
var ErrIssuanceQuotaExceeded = errors.New("token: issuance quota exceeded")

// ProofOfWorkMinter mints a credential on behalf of a successfully verified
// proof-of-work challenge. Only the challenge package is given one.
type ProofOfWorkMinter interface {
	MintProofOfWork(ctx context.Context, subject string, rateMultiplier float64) (string, security.BearerCredential, error)
}

// PaymentMinter mints provisional and final credentials on behalf of a
// Payment Session state transition. Only the payment package is given one.
type PaymentMinter interface {
	MintProvisional(ctx context.Context, subject string, tierPermissions []string) (string, security.BearerCredential, error)
	MintFinal(ctx context.Context, subject string, tierPermissions []string) (string, security.BearerCredential, error)
}

// Config configures a Service.
type Config struct {
	Secret          []byte
	Issuer          string
	Audience        string
	AnonymousExpiry time.Duration
	AnonymousGrants []string
	PowExpiry       time.Duration
	PaymentExpiry   time.Duration
	IDGenerator     func() string
}

// Service mints every Bearer Credential the gateway issues.
type Service struct {
	cfg     Config
	limiter *ratelimit.Limiter
	logger  observability.Logger
	now     func() time.Time
}

// New constructs a Service. limiter enforces the per-address issuance quota
// on MintAnonymous; the proof-of-work and payment mint methods do not consult it.
func New(cfg Config, limiter *ratelimit.Limiter, logger observability.Logger) *Service {
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = func() string { return uuid.NewString() }
	}
	return &Service{cfg: cfg, limiter: limiter, logger: logger, now: time.Now}
}

// MintAnonymous issues a baseline credential for callerAddress, subject to
// the per-address issuance quota.
func (s *Service) MintAnonymous(ctx context.Context, callerAddress string) (string, security.BearerCredential, error) {
	if ok, _ := s.limiter.AllowIssuance(callerAddress); !ok {
		return "", security.BearerCredential{}, ErrIssuanceQuotaExceeded
	}
	return s.mint(callerAddress, s.cfg.AnonymousGrants, s.cfg.AnonymousExpiry)
}

// MintProofOfWork implements ProofOfWorkMinter.
func (s *Service) MintProofOfWork(ctx context.Context, subject string, rateMultiplier float64) (string, security.BearerCredential, error) {
	perms := []string{security.PermissionPowValidated, fmt.Sprintf("rate_multiplier_%g", rateMultiplier)}
	return s.mint(subject, perms, s.cfg.PowExpiry)
}

// MintProvisional implements PaymentMinter.
func (s *Service) MintProvisional(ctx context.Context, subject string, tierPermissions []string) (string, security.BearerCredential, error) {
	perms := append([]string{security.PermissionProvisional}, tierPermissions...)
	return s.mint(subject, perms, s.cfg.PaymentExpiry)
}

// MintFinal implements PaymentMinter.
func (s *Service) MintFinal(ctx context.Context, subject string, tierPermissions []string) (string, security.BearerCredential, error) {
	perms := append([]string{security.PermissionPaid}, tierPermissions...)
	return s.mint(subject, perms, s.cfg.PaymentExpiry)
}

func (s *Service) mint(subject string, permissions []string, expiry time.Duration) (string, security.BearerCredential, error) {
	now := s.now()
	cred := security.BearerCredential{
		Subject:      subject,
		Issuer:       s.cfg.Issuer,
		Audience:     s.cfg.Audience,
		IssuedAt:     now,
		NotBefore:    now,
		ExpiresAt:    now.Add(expiry),
		CredentialID: s.cfg.IDGenerator(),
		Permissions:  permissions,
	}
	signed, err := security.Sign(cred, s.cfg.Secret)
	if err != nil {
		return "", security.BearerCredential{}, fmt.Errorf("token: sign: %w", err)
	}
	s.logger.Debug("credential minted",
		observability.String("credential_id", cred.CredentialID),
		observability.String("subject", cred.Subject),
	)
	return signed, cred, nil
}
