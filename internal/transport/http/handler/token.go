package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/zecgate/gateway/internal/challenge"
	"github.com/zecgate/gateway/internal/domain/security"
	"github.com/zecgate/gateway/internal/token"
	"github.com/zecgate/gateway/internal/transport/http/contract"
	"github.com/zecgate/gateway/internal/transport/http/response"
)

// TokenHandler serves /token/issue and /token/validate.
type TokenHandler struct {
	svc         *token.Service
	challenges  *challenge.Service
	authn       security.Authenticator
	resolver    CallerResolver
}

// NewTokenHandler constructs a TokenHandler.
func NewTokenHandler(svc *token.Service, challenges *challenge.Service, authn security.Authenticator, resolver CallerResolver) *TokenHandler {
	return &TokenHandler{svc: svc, challenges: challenges, authn: authn, resolver: resolver}
}

type issueRequest struct {
	Mode     string          `json:"mode" validate:"omitempty,oneof=anonymous proof_of_work"`
	Solution solutionRequest `json:"solution,omitempty"`
}

type tokenDocument struct {
	Token       string   `json:"token"`
	ExpiresAt   string   `json:"expires_at"`
	Permissions []string `json:"permissions"`
}

// Issue handles POST /token/issue. Mode selects between anonymous issuance
// and proof-of-work verification; payment-verified issuance is only reached
// through the payment Manager's own state machine, never through this path.
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req issueRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, r, http.StatusBadRequest, "MALFORMED_REQUEST", "invalid JSON body")
			return
		}
	}
	if req.Mode == "" {
		req.Mode = "anonymous"
	}
	if ferrs := contract.Validate(req); len(ferrs) > 0 {
		response.Error(w, r, http.StatusBadRequest, "INVALID_PARAMETERS", ferrs[0].Field+" "+ferrs[0].Message)
		return
	}

	callerAddress := h.resolver.CallerAddress(r)

	switch req.Mode {
	case "anonymous":
		signed, cred, err := h.svc.MintAnonymous(r.Context(), callerAddress)
		if err != nil {
			response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "issuance quota exceeded")
			return
		}
		writeToken(w, r, signed, cred)

	case "proof_of_work":
		sol, err := req.Solution.toSolution(callerAddress)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, "MALFORMED_REQUEST", "invalid solution encoding")
			return
		}
		signed, cred, err := h.challenges.Verify(r.Context(), sol)
		if err != nil {
			status, code := challengeErrorStatus(err)
			response.Error(w, r, status, code, err.Error())
			return
		}
		writeToken(w, r, signed, cred)

	default:
		response.Error(w, r, http.StatusBadRequest, "UNSUPPORTED_MODE", "unsupported issuance mode")
	}
}

func challengeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, challenge.ErrNotFound):
		return http.StatusNotFound, "CHALLENGE_NOT_FOUND"
	case errors.Is(err, challenge.ErrAlreadyUsed):
		return http.StatusConflict, "CHALLENGE_ALREADY_USED"
	case errors.Is(err, challenge.ErrExpired):
		return http.StatusGone, "CHALLENGE_EXPIRED"
	case errors.Is(err, challenge.ErrAddressMismatch):
		return http.StatusForbidden, "CHALLENGE_ADDRESS_MISMATCH"
	case errors.Is(err, challenge.ErrThresholdNotMet):
		return http.StatusUnprocessableEntity, "CHALLENGE_THRESHOLD_NOT_MET"
	default:
		return http.StatusBadRequest, "CHALLENGE_VERIFICATION_FAILED"
	}
}

func writeToken(w http.ResponseWriter, r *http.Request, signed string, cred security.BearerCredential) {
	response.SuccessStatus(w, r, http.StatusCreated, tokenDocument{
		Token:       signed,
		ExpiresAt:   cred.ExpiresAt.Format(timeLayout),
		Permissions: cred.Permissions,
	})
}

type validateDocument struct {
	Valid       bool     `json:"valid"`
	Subject     string   `json:"subject,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	ExpiresAt   string   `json:"expires_at,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

// Validate handles POST /token/validate, a diagnostic endpoint that reports
// whether the bearer credential on the request would currently authenticate.
func (h *TokenHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	raw := h.resolver.BearerToken(r)
	cred, err := h.authn.Authenticate(r.Context(), raw, time.Now())
	if err != nil {
		var authErr *security.AuthError
		reason := "invalid"
		if errors.As(err, &authErr) {
			reason = string(authErr.Reason)
		}
		response.Success(w, r, validateDocument{Valid: false, Reason: reason})
		return
	}

	response.Success(w, r, validateDocument{
		Valid:       true,
		Subject:     cred.Subject,
		Permissions: cred.Permissions,
		ExpiresAt:   cred.ExpiresAt.Format(timeLayout),
	})
}
