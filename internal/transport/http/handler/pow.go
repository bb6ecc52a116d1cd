package handler

import (
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/zecgate/gateway/internal/challenge"
	"github.com/zecgate/gateway/internal/transport/http/response"
)

// ChallengeHandler serves /pow/challenge.
type ChallengeHandler struct {
	svc      *challenge.Service
	resolver CallerResolver
}

// NewChallengeHandler constructs a ChallengeHandler.
func NewChallengeHandler(svc *challenge.Service, resolver CallerResolver) *ChallengeHandler {
	return &ChallengeHandler{svc: svc, resolver: resolver}
}

type challengeDocument struct {
	ChallengeID     string `json:"challenge_id"`
	PreimageNonce   string `json:"preimage_nonce"`
	TargetThreshold string `json:"target_threshold"`
	Algorithm       string `json:"algorithm"`
	ExpiresAt       string `json:"expires_at"`
}

func (h *ChallengeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	callerAddress := h.resolver.CallerAddress(r)
	c, err := h.svc.Issue(r.Context(), callerAddress)
	if err != nil {
		if errors.Is(err, challenge.ErrIssuanceFrozen) {
			response.Error(w, r, http.StatusTooManyRequests, "CHALLENGE_ISSUANCE_FROZEN", "issuance temporarily frozen")
			return
		}
		response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "issuance quota exceeded")
		return
	}

	response.SuccessStatus(w, r, http.StatusCreated, challengeDocument{
		ChallengeID:     c.ID,
		PreimageNonce:   hex.EncodeToString(c.PreimageNonce),
		TargetThreshold: c.TargetThreshold.Text(16),
		Algorithm:       c.Algorithm,
		ExpiresAt:       c.ExpiresAt.Format(timeLayout),
	})
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// solutionRequest is the PoW-mode payload accepted by /token/issue.
type solutionRequest struct {
	ChallengeID string `json:"challenge_id"`
	WorkerNonce string `json:"worker_nonce"`
	ClaimedHash string `json:"claimed_hash"`
}

func (s solutionRequest) toSolution(callerAddress string) (challenge.Solution, error) {
	workerNonce, err := hex.DecodeString(s.WorkerNonce)
	if err != nil {
		return challenge.Solution{}, err
	}
	claimedHash, err := hex.DecodeString(s.ClaimedHash)
	if err != nil {
		return challenge.Solution{}, err
	}
	return challenge.Solution{
		ChallengeID:   s.ChallengeID,
		CallerAddress: callerAddress,
		WorkerNonce:   workerNonce,
		ClaimedHash:   claimedHash,
	}, nil
}
