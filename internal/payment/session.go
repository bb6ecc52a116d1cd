// Package payment implements the Payment Service: shielded on-chain deposit
// quotes, transaction submission, confirmation watching, and provisional and
// final credential issuance, driven by the Payment Session state machine.
package payment

import "time"

// State is a Payment Session lifecycle state. Transitions are unidirectional
// through pending -> submitted -> verified -> confirmed_once -> finalized,
// except that expired and failed are reachable from any non-terminal state.
type State string

// Payment Session states.
const (
	StatePending       State = "pending"
	StateSubmitted     State = "submitted"
	StateVerified      State = "verified"
	StateConfirmedOnce State = "confirmed_once"
	StateFinalized     State = "finalized"
	StateExpired       State = "expired"
	StateFailed        State = "failed"
)

// Terminal reports whether s has no further transitions.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateExpired || s == StateFailed
}

// Tier describes a purchasable quote: its price and the permission markers
// granted to credentials issued against it.
type Tier struct {
	ID              string
	RequiredAmount  float64
	Permissions     []string
	MinConfirmations int
}

// Session is a Payment Session. Amount, tier, and deposit address are
// immutable after creation; State, the submitted txid, the confirmation count
// and the issued credential fields are mutated only under the owning
// Manager's per-session lock.
type Session struct {
	PaymentID               string    `json:"payment_id"`
	TierID                   string    `json:"tier_id"`
	RequiredAmount           float64   `json:"required_amount"`
	DepositAddress           string    `json:"deposit_address"`
	AddressType              string    `json:"address_type"`
	State                    State     `json:"state"`
	SubmittedTxID            string    `json:"submitted_txid,omitempty"`
	Confirmations            int       `json:"confirmations"`
	CreatedAt                time.Time `json:"created_at"`
	ExpiresAt                time.Time `json:"expires_at"`
	ProvisionalCredentialID  string    `json:"provisional_credential_id,omitempty"`
	ProvisionalToken         string    `json:"provisional_token,omitempty"`
	FinalCredentialID        string    `json:"final_credential_id,omitempty"`
	FinalToken               string    `json:"final_token,omitempty"`
}

// Snapshot returns a value copy safe to hand to a reader without holding the
// session's lock.
func (s *Session) Snapshot() Session { return *s }
