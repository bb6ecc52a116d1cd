package payment

import "errors"

var (
	// ErrSessionNotFound is returned when a payment_id has no known session.
	ErrSessionNotFound = errors.New("payment: session not found")
	// ErrUnknownTier is returned for a tier_id absent from configuration.
	ErrUnknownTier = errors.New("payment: unknown tier")
	// ErrPoolExhausted is returned in viewing-only mode when no imported
	// address remains unassigned.
	ErrPoolExhausted = errors.New("payment: deposit address pool exhausted")
	// ErrViewingKeysAbsent is returned when viewing keys are required but not
	// configured, so no quote can be issued at all.
	ErrViewingKeysAbsent = errors.New("payment: viewing keys not configured")
	// ErrSessionTerminal is returned when an operation is attempted against a
	// session that has already reached a terminal state.
	ErrSessionTerminal = errors.New("payment: session already in a terminal state")
	// ErrDepositMismatch is returned when a submitted transaction does not
	// reference the session's deposit address for at least the required amount.
	ErrDepositMismatch = errors.New("payment: transaction does not satisfy deposit requirements")
)
