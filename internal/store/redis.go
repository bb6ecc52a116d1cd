// Package store provides the Redis client and keyspace prefixes for the
// gateway's durable state: payment session snapshots and revocation records.
// The store interfaces and their in-process fallbacks live in the payment
// and revocation packages.
// Rate buckets and the response cache are always process-local, per the
// gateway's configuration contract, and never go through this package.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the connection to the durable backing store.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisClient wraps a pooled go-redis client.
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient dials addr and verifies connectivity before returning.
func NewRedisClient(cfg RedisConfig) (*RedisClient, error) {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = 2
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 3 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: redis connection failed: %w", err)
	}
	return &RedisClient{rdb: rdb}, nil
}

// Close closes the underlying connection pool.
func (c *RedisClient) Close() error { return c.rdb.Close() }

// Ping checks liveness, used by the /health endpoint.
func (c *RedisClient) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

// Client returns the underlying *redis.Client for direct access by the
// payment and revocation stores.
func (c *RedisClient) Client() *redis.Client { return c.rdb }

// Key prefixes for the durable keyspace.
const (
	paymentsKeyPrefix = "payments:"
	revokedKeyPrefix  = "revoked:"
)

// PaymentKey returns the durable-store key for a payment session.
func PaymentKey(paymentID string) string { return paymentsKeyPrefix + paymentID }

// RevocationKey returns the durable-store key for a revoked credential id.
func RevocationKey(credentialID string) string { return revokedKeyPrefix + credentialID }
