package revocation

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/zecgate/gateway/internal/infra/wrapper"
	"github.com/zecgate/gateway/internal/store"
)

// RedisStore backs revocation records with a shared durable store, under
// the revoked:{credential_id} keyspace prefix, relying on Redis's own
// expiry (SET ... EX) to self-expire records.
type RedisStore struct {
	client *store.RedisClient
}

// NewRedisStore constructs a RedisStore over an already-connected client.
func NewRedisStore(client *store.RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

// Revoke writes a revocation marker with TTL equal to expiresAt - now.
func (s *RedisStore) Revoke(ctx context.Context, credentialID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return wrapper.DoRedis(ctx, func(ctx context.Context) error {
		return s.client.Client().Set(ctx, store.RevocationKey(credentialID), "1", ttl).Err()
	})
}

// IsRevoked checks for the presence of the revocation key.
func (s *RedisStore) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	var revoked bool
	err := wrapper.DoRedis(ctx, func(ctx context.Context) error {
		_, err := s.client.Client().Get(ctx, store.RevocationKey(credentialID)).Result()
		if errors.Is(err, goredis.Nil) {
			revoked = false
			return nil
		}
		if err != nil {
			return err
		}
		revoked = true
		return nil
	})
	return revoked, err
}
