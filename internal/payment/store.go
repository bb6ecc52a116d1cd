package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/zecgate/gateway/internal/infra/wrapper"
	"github.com/zecgate/gateway/internal/store"
)

// Store persists Payment Session snapshots keyed by payment id.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, paymentID string) (*Session, error)
}

// InProcessStore keeps sessions in a concurrent map, used when no durable
// backing store is configured.
type InProcessStore struct {
	sessions sync.Map // payment id -> *Session
}

// NewInProcessStore constructs an InProcessStore.
func NewInProcessStore() *InProcessStore { return &InProcessStore{} }

// Save stores a value copy of s.
func (st *InProcessStore) Save(_ context.Context, s *Session) error {
	cp := s.Snapshot()
	st.sessions.Store(s.PaymentID, &cp)
	return nil
}

// Load returns a value copy of the stored session.
func (st *InProcessStore) Load(_ context.Context, paymentID string) (*Session, error) {
	v, ok := st.sessions.Load(paymentID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *v.(*Session)
	return &cp, nil
}

// RedisStore persists session snapshots as JSON under the payments: prefix,
// with a TTL equal to the session's configured lifetime.
type RedisStore struct {
	client *store.RedisClient
	ttl    time.Duration
}

// NewRedisStore constructs a RedisStore. ttl bounds how long a session
// snapshot survives in the backing store past its creation.
func NewRedisStore(client *store.RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Save serializes s and writes it with the store's configured TTL.
func (st *RedisStore) Save(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("payment: marshal session: %w", err)
	}
	return wrapper.DoRedis(ctx, func(ctx context.Context) error {
		return st.client.Client().Set(ctx, store.PaymentKey(s.PaymentID), raw, st.ttl).Err()
	})
}

// Load fetches and deserializes the session snapshot for paymentID.
func (st *RedisStore) Load(ctx context.Context, paymentID string) (*Session, error) {
	raw, err := wrapper.DoRedisResult(ctx, func(ctx context.Context) (string, error) {
		return st.client.Client().Get(ctx, store.PaymentKey(paymentID)).Result()
	})
	if err != nil {
		return nil, ErrSessionNotFound
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("payment: unmarshal session: %w", err)
	}
	return &s, nil
}
