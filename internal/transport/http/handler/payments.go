package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zecgate/gateway/internal/payment"
	"github.com/zecgate/gateway/internal/transport/http/contract"
	"github.com/zecgate/gateway/internal/transport/http/response"
)

// PaymentsHandler serves /payments/request, /payments/submit, and
// /payments/status/{payment_id}.
type PaymentsHandler struct {
	manager *payment.Manager
}

// NewPaymentsHandler constructs a PaymentsHandler.
func NewPaymentsHandler(manager *payment.Manager) *PaymentsHandler {
	return &PaymentsHandler{manager: manager}
}

type quoteRequest struct {
	TierID      string `json:"tier_id" validate:"required,oneof=standard premium"`
	AddressType string `json:"address_type,omitempty" validate:"omitempty,oneof=shielded_sprout shielded_sapling"`
}

type sessionDocument struct {
	PaymentID      string `json:"payment_id"`
	TierID         string `json:"tier_id"`
	RequiredAmount float64 `json:"required_amount"`
	DepositAddress string `json:"deposit_address"`
	AddressType    string `json:"address_type"`
	State          string `json:"state"`
	SubmittedTxID  string `json:"submitted_txid,omitempty"`
	Confirmations  int    `json:"confirmations"`
	ExpiresAt      string `json:"expires_at"`
	ProvisionalToken string `json:"provisional_token,omitempty"`
	FinalToken       string `json:"final_token,omitempty"`
}

func toSessionDocument(s *payment.Session) sessionDocument {
	return sessionDocument{
		PaymentID:        s.PaymentID,
		TierID:           s.TierID,
		RequiredAmount:   s.RequiredAmount,
		DepositAddress:   s.DepositAddress,
		AddressType:      s.AddressType,
		State:            string(s.State),
		SubmittedTxID:    s.SubmittedTxID,
		Confirmations:    s.Confirmations,
		ExpiresAt:        s.ExpiresAt.Format(timeLayout),
		ProvisionalToken: s.ProvisionalToken,
		FinalToken:       s.FinalToken,
	}
}

// Request handles POST /payments/request, creating a pending Payment Session.
func (h *PaymentsHandler) Request(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "MALFORMED_REQUEST", "invalid JSON body")
		return
	}
	if ferrs := contract.Validate(req); len(ferrs) > 0 {
		response.Error(w, r, http.StatusBadRequest, "INVALID_PARAMETERS", ferrs[0].Field+" "+ferrs[0].Message)
		return
	}

	session, err := h.manager.RequestQuote(r.Context(), req.TierID)
	if err != nil {
		status, code := paymentErrorStatus(err)
		response.Error(w, r, status, code, err.Error())
		return
	}
	response.SuccessStatus(w, r, http.StatusCreated, toSessionDocument(session))
}

type submitRequest struct {
	PaymentID string `json:"payment_id" validate:"required,uuid4"`
	RawTxHex  string `json:"raw_tx_hex" validate:"required,hexadecimal"`
}

type submitDocument struct {
	TxID string `json:"txid"`
}

// Submit handles POST /payments/submit, broadcasting a raw transaction
// against a previously requested Payment Session.
func (h *PaymentsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "MALFORMED_REQUEST", "invalid JSON body")
		return
	}
	if ferrs := contract.Validate(req); len(ferrs) > 0 {
		response.Error(w, r, http.StatusBadRequest, "INVALID_PARAMETERS", ferrs[0].Field+" "+ferrs[0].Message)
		return
	}

	txid, err := h.manager.Submit(r.Context(), req.PaymentID, req.RawTxHex)
	if err != nil {
		status, code := paymentErrorStatus(err)
		response.Error(w, r, status, code, err.Error())
		return
	}
	response.Success(w, r, submitDocument{TxID: txid})
}

// Status handles GET /payments/status/{payment_id}.
func (h *PaymentsHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	paymentID := chi.URLParam(r, "payment_id")
	session, err := h.manager.Status(r.Context(), paymentID)
	if err != nil {
		response.Error(w, r, http.StatusNotFound, "PAYMENT_SESSION_NOT_FOUND", "unknown payment_id")
		return
	}
	response.Success(w, r, toSessionDocument(session))
}

func paymentErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, payment.ErrUnknownTier):
		return http.StatusBadRequest, "UNKNOWN_TIER"
	case errors.Is(err, payment.ErrViewingKeysAbsent):
		return http.StatusServiceUnavailable, "VIEWING_KEYS_ABSENT"
	case errors.Is(err, payment.ErrPoolExhausted):
		return http.StatusServiceUnavailable, "DEPOSIT_POOL_EXHAUSTED"
	case errors.Is(err, payment.ErrSessionTerminal):
		return http.StatusConflict, "PAYMENT_SESSION_TERMINAL"
	case errors.Is(err, payment.ErrDepositMismatch):
		return http.StatusUnprocessableEntity, "DEPOSIT_MISMATCH"
	default:
		return http.StatusBadRequest, "PAYMENT_REQUEST_FAILED"
	}
}
