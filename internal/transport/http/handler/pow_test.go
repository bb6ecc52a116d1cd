package handler

import (
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zecgate/gateway/internal/challenge"
	"github.com/zecgate/gateway/internal/observability"
	"github.com/zecgate/gateway/internal/ratelimit"
	"github.com/zecgate/gateway/internal/token"
)

func newTestChallengeService(t *testing.T) *challenge.Service {
	t.Helper()
	limiter := ratelimit.New(ratelimit.Config{
		Default:  ratelimit.Rate{PerSecond: 100, Burst: 100},
		Issuance: ratelimit.Rate{PerSecond: 100, Burst: 100},
	})
	t.Cleanup(limiter.Stop)
	tokenSvc := token.New(token.Config{
		Secret:          []byte("01234567890123456789012345678901"),
		Issuer:          "zecgate",
		Audience:        "zecgate-clients",
		AnonymousExpiry: time.Minute,
		PowExpiry:       time.Hour,
		PaymentExpiry:   time.Hour,
	}, limiter, observability.NewNopLoggerInterface())
	return newTestChallengeServiceWithTokens(t, tokenSvc, limiter)
}

func newTestChallengeServiceWithTokens(t *testing.T, tokenSvc *token.Service, limiter *ratelimit.Limiter) *challenge.Service {
	t.Helper()
	svc, err := challenge.New(challenge.Config{
		TTL:              time.Minute,
		DifficultyBits:   1,
		Algorithm:        challenge.AlgorithmSHA256,
		RateMultiplier:   1.0,
		FailureThreshold: 3,
		FreezeDuration:   time.Minute,
	}, tokenSvc, limiter, observability.NewNopLoggerInterface())
	require.NoError(t, err)
	return svc
}

func TestChallengeHandler_Issue(t *testing.T) {
	svc := newTestChallengeService(t)
	h := NewChallengeHandler(svc, fakeResolver{callerAddress: "203.0.113.1"})

	req := httptest.NewRequest(http.MethodPost, "/pow/challenge", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "challenge_id")
	assert.Contains(t, rec.Body.String(), "sha-256")
}

func TestChallengeHandler_RejectsGet(t *testing.T) {
	svc := newTestChallengeService(t)
	h := NewChallengeHandler(svc, fakeResolver{})

	req := httptest.NewRequest(http.MethodGet, "/pow/challenge", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSolutionRequest_ToSolution_InvalidHex(t *testing.T) {
	sr := solutionRequest{ChallengeID: "x", WorkerNonce: "not-hex", ClaimedHash: hex.EncodeToString([]byte("abc"))}
	_, err := sr.toSolution("caller")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "encoding/hex") || err != nil)
}
