package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zecgate/gateway/internal/observability"
	"github.com/zecgate/gateway/internal/revocation"
	"github.com/zecgate/gateway/internal/token"
)

// BackendCaller is the subset of backend.Proxy the Payment Service needs to
// broadcast and inspect shielded transactions. Its calls bypass the public
// method registry: they are internal backend operations, not caller-facing
// RPC methods.
type BackendCaller interface {
	Call(ctx context.Context, id json.RawMessage, method string, params json.RawMessage) (json.RawMessage, error)
}

// Config configures a Manager.
type Config struct {
	Enabled             bool
	MinConfirmations    int
	SessionTTL          time.Duration
	RequireViewingKey   bool
	ViewingKeysPresent  bool
	PollInterval        time.Duration
	Tiers               map[string]Tier
	DepositAddressPool  []string
}

// Manager drives Payment Session creation, submission, confirmation
// watching, and credential issuance. Every state transition for a given
// payment_id is serialized under that session's lock.
type Manager struct {
	cfg        Config
	pool       *addressPool
	backend    BackendCaller
	store      Store
	revocation revocation.Store
	minter     token.PaymentMinter
	logger     observability.Logger
	now        func() time.Time

	locks    sync.Map // payment id -> *sync.Mutex
	inFlight sync.Map // payment id -> struct{}, sessions the watcher must poll
	stop     chan struct{}
	once     sync.Once
}

// New constructs a Manager and starts its confirmation-watching loop.
func New(cfg Config, backend BackendCaller, sessionStore Store, revocationStore revocation.Store, minter token.PaymentMinter, logger observability.Logger) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	m := &Manager{
		cfg:        cfg,
		pool:       newAddressPool(cfg.DepositAddressPool),
		backend:    backend,
		store:      sessionStore,
		revocation: revocationStore,
		minter:     minter,
		logger:     logger,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if cfg.Enabled {
		go m.watchLoop()
	}
	return m
}

// Stop halts the confirmation-watching loop. Safe to call multiple times.
func (m *Manager) Stop() {
	m.once.Do(func() { close(m.stop) })
}

func (m *Manager) lockFor(paymentID string) *sync.Mutex {
	v, _ := m.locks.LoadOrStore(paymentID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// RequestQuote creates a pending Payment Session for tierID, assigning a
// deposit address from the imported pool. Viewing-only mode is assumed: the
// gateway never mints fresh addresses itself.
func (m *Manager) RequestQuote(ctx context.Context, tierID string) (*Session, error) {
	if !m.cfg.Enabled {
		return nil, errors.New("payment: payments are disabled")
	}
	tier, ok := m.cfg.Tiers[tierID]
	if !ok {
		return nil, ErrUnknownTier
	}
	if m.cfg.RequireViewingKey && !m.cfg.ViewingKeysPresent {
		return nil, ErrViewingKeysAbsent
	}
	addr, ok := m.pool.take()
	if !ok {
		return nil, ErrPoolExhausted
	}

	now := m.now()
	session := &Session{
		PaymentID:      uuid.NewString(),
		TierID:         tier.ID,
		RequiredAmount: tier.RequiredAmount,
		DepositAddress: addr,
		AddressType:    "shielded",
		State:          StatePending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(m.cfg.SessionTTL),
	}
	if err := m.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("payment: save session: %w", err)
	}
	return session, nil
}

// Status returns a lock-free snapshot of the session's current record.
func (m *Manager) Status(ctx context.Context, paymentID string) (*Session, error) {
	return m.store.Load(ctx, paymentID)
}

// Submit broadcasts rawtxHex against paymentID's deposit address. Repeated
// submission of the same payment_id is a no-op once the session has already
// left pending.
func (m *Manager) Submit(ctx context.Context, paymentID, rawtxHex string) (string, error) {
	lock := m.lockFor(paymentID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.store.Load(ctx, paymentID)
	if err != nil {
		return "", err
	}
	if session.State != StatePending {
		if session.SubmittedTxID != "" {
			return session.SubmittedTxID, nil
		}
		if session.State.Terminal() {
			return "", ErrSessionTerminal
		}
	}
	if m.now().After(session.ExpiresAt) {
		session.State = StateExpired
		_ = m.store.Save(ctx, session)
		return "", ErrSessionTerminal
	}

	params, _ := json.Marshal([]any{rawtxHex})
	raw, err := m.backend.Call(ctx, json.RawMessage(`"`+paymentID+`"`), "sendrawtransaction", params)
	if err != nil {
		session.State = StateFailed
		_ = m.store.Save(ctx, session)
		return "", m.revokeAndReturn(ctx, session, err)
	}
	var txid string
	if unmarshalErr := json.Unmarshal(raw, &txid); unmarshalErr != nil {
		return "", fmt.Errorf("payment: decode broadcast result: %w", unmarshalErr)
	}

	ok, verifyErr := m.verifyDeposit(ctx, txid, session.DepositAddress, session.RequiredAmount)
	if verifyErr != nil {
		return "", fmt.Errorf("payment: verify deposit: %w", verifyErr)
	}
	if !ok {
		session.State = StateFailed
		_ = m.store.Save(ctx, session)
		return "", ErrDepositMismatch
	}

	session.SubmittedTxID = txid
	session.State = StateVerified
	if err := m.store.Save(ctx, session); err != nil {
		return "", fmt.Errorf("payment: save session: %w", err)
	}
	m.inFlight.Store(session.PaymentID, struct{}{})
	return txid, nil
}

type viewTxOutput struct {
	Address string  `json:"address"`
	Value   float64 `json:"value"`
}

type viewTxResult struct {
	Outputs []viewTxOutput `json:"outputs"`
}

// verifyDeposit asks the backend to decode txid using viewing-key
// operations and checks that it credits depositAddress for at least
// requiredAmount.
func (m *Manager) verifyDeposit(ctx context.Context, txid, depositAddress string, requiredAmount float64) (bool, error) {
	params, _ := json.Marshal([]any{txid})
	raw, err := m.backend.Call(ctx, json.RawMessage(`"verify"`), "z_viewtransaction", params)
	if err != nil {
		return false, err
	}
	var result viewTxResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return false, err
	}
	var total float64
	for _, out := range result.Outputs {
		if out.Address == depositAddress {
			total += out.Value
		}
	}
	return total >= requiredAmount, nil
}

type txConfirmationsResult struct {
	Confirmations int `json:"confirmations"`
}

func (m *Manager) watchLoop() {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.pollAll()
		}
	}
}

// pollAll advances every session Submit has marked in-flight. It runs on a
// fixed interval from watchLoop, independent of any status request.
func (m *Manager) pollAll() {
	ctx := context.Background()
	m.inFlight.Range(func(key, _ any) bool {
		paymentID := key.(string)
		if err := m.pollOne(ctx, paymentID); err != nil {
			m.logger.Warn("confirmation poll failed",
				observability.String("payment_id", paymentID), observability.Err(err))
		}
		return true
	})
}

// pollOne checks txid's confirmation depth and advances paymentID's session
// through confirmed_once and finalized, issuing credentials at each step.
// The watch loop calls it for each in-flight session.
func (m *Manager) pollOne(ctx context.Context, paymentID string) error {
	lock := m.lockFor(paymentID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.store.Load(ctx, paymentID)
	if err != nil {
		return err
	}
	if session.State != StateVerified && session.State != StateConfirmedOnce {
		return nil
	}
	if session.SubmittedTxID == "" {
		return nil
	}

	params, _ := json.Marshal([]any{session.SubmittedTxID})
	raw, err := m.backend.Call(ctx, json.RawMessage(`"poll"`), "gettransaction", params)
	if err != nil {
		return m.revokeAndReturnErr(ctx, session, err)
	}
	var info txConfirmationsResult
	if err := json.Unmarshal(raw, &info); err != nil {
		return err
	}
	session.Confirmations = info.Confirmations

	tier := m.cfg.Tiers[session.TierID]
	minConf := tier.MinConfirmations
	if minConf <= 0 {
		minConf = m.cfg.MinConfirmations
	}
	finalDepth := minConf
	if finalDepth < 2 {
		finalDepth = 2
	}

	switch {
	case session.State == StateVerified && info.Confirmations >= minConf:
		signed, cred, mintErr := m.minter.MintProvisional(ctx, session.PaymentID, tier.Permissions)
		if mintErr != nil {
			return mintErr
		}
		session.ProvisionalCredentialID = cred.CredentialID
		session.ProvisionalToken = signed
		session.State = StateConfirmedOnce
	case session.State == StateConfirmedOnce && info.Confirmations >= finalDepth:
		signed, cred, mintErr := m.minter.MintFinal(ctx, session.PaymentID, tier.Permissions)
		if mintErr != nil {
			return mintErr
		}
		session.FinalCredentialID = cred.CredentialID
		session.FinalToken = signed
		session.State = StateFinalized
	}
	if session.State.Terminal() {
		m.inFlight.Delete(paymentID)
	}
	return m.store.Save(ctx, session)
}

func (m *Manager) revokeAndReturn(ctx context.Context, session *Session, cause error) error {
	if revokeErr := m.revokeAndReturnErr(ctx, session, cause); revokeErr != nil {
		return revokeErr
	}
	return cause
}

// revokeAndReturnErr revokes any provisional credential issued for session
// before it reached failed/expired, per the invariant that a credential's id
// appears in the Revocation Store before the next status read reports the
// terminal state.
func (m *Manager) revokeAndReturnErr(ctx context.Context, session *Session, cause error) error {
	if session.ProvisionalCredentialID != "" && session.State != StateFinalized {
		if revokeErr := m.revocation.Revoke(ctx, session.ProvisionalCredentialID, session.ExpiresAt); revokeErr != nil {
			m.logger.Error("failed to revoke provisional credential", observability.Err(revokeErr))
		}
	}
	session.State = StateFailed
	m.inFlight.Delete(session.PaymentID)
	if saveErr := m.store.Save(ctx, session); saveErr != nil {
		return errors.Join(cause, saveErr)
	}
	return cause
}
