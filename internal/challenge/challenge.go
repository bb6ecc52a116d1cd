// Package challenge issues and verifies proof-of-work challenges. A solved
// challenge signals the Token Service (via token.ProofOfWorkMinter) to mint
// an enhanced credential; the challenge itself is consumed exactly once,
// enforced by an atomic compare-and-swap rather than a lock.
package challenge

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zecgate/gateway/internal/domain/security"
	"github.com/zecgate/gateway/internal/observability"
	"github.com/zecgate/gateway/internal/ratelimit"
	"github.com/zecgate/gateway/internal/token"
)

// Algorithm names accepted at challenge creation. Blake3 is declared but has
// no implementation in this module: New rejects it with
// ErrUnsupportedAlgorithm at construction rather than via a stubbed hash.
const (
	AlgorithmSHA256 = "sha-256"
	AlgorithmBlake3 = "blake3"
)

// Failure reasons returned by Verify, logged as coarse, caller-safe tags.
var (
	ErrNotFound       = errors.New("challenge: not found")
	ErrAlreadyUsed    = errors.New("challenge: already consumed")
	ErrExpired        = errors.New("challenge: expired")
	ErrAddressMismatch = errors.New("challenge: caller address mismatch")
	ErrThresholdNotMet = errors.New("challenge: threshold not met")
	ErrUnsupportedAlgorithm = errors.New("challenge: unsupported algorithm")
	ErrIssuanceFrozen  = errors.New("challenge: issuance temporarily frozen")
)

// Challenge is a single-use proof-of-work puzzle bound to a caller address.
type Challenge struct {
	ID             string
	CallerAddress  string
	PreimageNonce  []byte
	Algorithm      string
	TargetThreshold *big.Int
	ExpiresAt      time.Time
	consumed       atomic.Bool
}

// Solution is a caller-submitted proof-of-work answer.
type Solution struct {
	ChallengeID   string
	CallerAddress string
	WorkerNonce   []byte
	ClaimedHash   []byte
}

// Config configures a Service.
type Config struct {
	TTL              time.Duration
	DifficultyBits    int
	Algorithm        string
	RateMultiplier   float64
	FailureThreshold int
	FreezeDuration   time.Duration
}

// Service issues and verifies challenges.
type Service struct {
	cfg       Config
	minter    token.ProofOfWorkMinter
	limiter   *ratelimit.Limiter
	logger    observability.Logger
	now       func() time.Time
	challenges sync.Map // challenge id -> *Challenge
	failures  sync.Map // caller address -> *failureRecord
}

type failureRecord struct {
	mu          sync.Mutex
	count       int
	frozenUntil time.Time
}

// New constructs a Service. Returns an error if cfg.Algorithm is not a
// supported value.
func New(cfg Config, minter token.ProofOfWorkMinter, limiter *ratelimit.Limiter, logger observability.Logger) (*Service, error) {
	switch cfg.Algorithm {
	case AlgorithmSHA256:
	case AlgorithmBlake3:
		return nil, fmt.Errorf("challenge: %s: %w", cfg.Algorithm, ErrUnsupportedAlgorithm)
	default:
		return nil, fmt.Errorf("challenge: %s: %w", cfg.Algorithm, ErrUnsupportedAlgorithm)
	}
	if cfg.RateMultiplier <= 0 {
		cfg.RateMultiplier = 1.0
	}
	return &Service{cfg: cfg, minter: minter, limiter: limiter, logger: logger, now: time.Now}, nil
}

// Issue creates a Challenge for callerAddress, subject to the independent
// challenge-issuance rate bucket and any active freeze from repeated
// verification failures.
func (s *Service) Issue(ctx context.Context, callerAddress string) (*Challenge, error) {
	if frozen, until := s.isFrozen(callerAddress); frozen {
		s.logger.Warn("challenge issuance frozen", observability.String("caller", callerAddress), observability.Any("until", until))
		return nil, ErrIssuanceFrozen
	}
	if ok, _ := s.limiter.AllowIssuance(callerAddress); !ok {
		return nil, fmt.Errorf("challenge: %w", ratelimitExceeded)
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("challenge: generate nonce: %w", err)
	}

	now := s.now()
	c := &Challenge{
		ID:              uuid.NewString(),
		CallerAddress:   callerAddress,
		PreimageNonce:   nonce,
		Algorithm:       s.cfg.Algorithm,
		TargetThreshold: targetThreshold(s.cfg.DifficultyBits),
		ExpiresAt:       now.Add(s.cfg.TTL),
	}
	s.challenges.Store(c.ID, c)
	return c, nil
}

var ratelimitExceeded = errors.New("issuance quota exceeded")

// Verify checks sol against its referenced Challenge. On success, it marks
// the challenge consumed and mints an enhanced credential via the Token
// Service. On failure, it records a per-caller strike and freezes that
// caller's issuance bucket once a threshold of strikes accumulates.
func (s *Service) Verify(ctx context.Context, sol Solution) (string, security.BearerCredential, error) {
	v, ok := s.challenges.Load(sol.ChallengeID)
	if !ok {
		return "", security.BearerCredential{}, ErrNotFound
	}
	c := v.(*Challenge)

	if c.CallerAddress != sol.CallerAddress {
		s.recordFailure(sol.CallerAddress)
		return "", security.BearerCredential{}, ErrAddressMismatch
	}
	if s.now().After(c.ExpiresAt) {
		return "", security.BearerCredential{}, ErrExpired
	}
	if !c.consumed.CompareAndSwap(false, true) {
		return "", security.BearerCredential{}, ErrAlreadyUsed
	}

	computed := hashPreimage(c.PreimageNonce, sol.WorkerNonce)
	if !bytes.Equal(computed, sol.ClaimedHash) {
		s.recordFailure(sol.CallerAddress)
		return "", security.BearerCredential{}, ErrThresholdNotMet
	}
	claimed := new(big.Int).SetBytes(sol.ClaimedHash)
	if claimed.Cmp(c.TargetThreshold) > 0 {
		s.recordFailure(sol.CallerAddress)
		return "", security.BearerCredential{}, ErrThresholdNotMet
	}

	s.challenges.Delete(c.ID)
	return s.minter.MintProofOfWork(ctx, sol.CallerAddress, s.cfg.RateMultiplier)
}

func (s *Service) recordFailure(callerAddress string) {
	v, _ := s.failures.LoadOrStore(callerAddress, &failureRecord{})
	rec := v.(*failureRecord)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.count++
	if rec.count >= s.cfg.FailureThreshold {
		rec.frozenUntil = s.now().Add(s.cfg.FreezeDuration)
		rec.count = 0
	}
}

func (s *Service) isFrozen(callerAddress string) (bool, time.Time) {
	v, ok := s.failures.Load(callerAddress)
	if !ok {
		return false, time.Time{}
	}
	rec := v.(*failureRecord)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.frozenUntil.IsZero() || s.now().After(rec.frozenUntil) {
		return false, time.Time{}
	}
	return true, rec.frozenUntil
}

// hashPreimage computes sha256(preimage || workerNonce). Algorithm selection
// is fixed to sha-256 at New; blake3 is rejected before a Service exists.
func hashPreimage(preimage, workerNonce []byte) []byte {
	h := sha256.New()
	h.Write(preimage)
	h.Write(workerNonce)
	return h.Sum(nil)
}

// targetThreshold returns the largest 256-bit value whose leading
// difficultyBits bits are zero, i.e. 2^(256-difficultyBits) - 1.
func targetThreshold(difficultyBits int) *big.Int {
	if difficultyBits < 0 {
		difficultyBits = 0
	}
	if difficultyBits > 256 {
		difficultyBits = 256
	}
	exp := 256 - difficultyBits
	t := new(big.Int).Lsh(big.NewInt(1), uint(exp))
	return t.Sub(t, big.NewInt(1))
}
