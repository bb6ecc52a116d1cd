// Package main is the entry point for the gateway service.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/zecgate/gateway/internal/app"
	"github.com/zecgate/gateway/internal/backend"
	"github.com/zecgate/gateway/internal/breaker"
	"github.com/zecgate/gateway/internal/cache"
	"github.com/zecgate/gateway/internal/challenge"
	"github.com/zecgate/gateway/internal/config"
	"github.com/zecgate/gateway/internal/domain/registry"
	"github.com/zecgate/gateway/internal/domain/security"
	"github.com/zecgate/gateway/internal/observability"
	"github.com/zecgate/gateway/internal/orchestrator"
	"github.com/zecgate/gateway/internal/payment"
	"github.com/zecgate/gateway/internal/ratelimit"
	"github.com/zecgate/gateway/internal/revocation"
	"github.com/zecgate/gateway/internal/store"
	"github.com/zecgate/gateway/internal/token"
	httpx "github.com/zecgate/gateway/internal/transport/http"
	"github.com/zecgate/gateway/internal/transport/http/handler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	zapLogger, err := observability.NewLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger initialization error: %v", err)
	}
	logger := observability.NewZapLogger(zapLogger)
	defer logger.Sync()
	logger.Info("starting gateway", observability.String("config", cfg.Redacted()))

	var redisClient *store.RedisClient
	if cfg.UsesDurableStore() {
		redisClient, err = store.NewRedisClient(store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Error("redis connection failed, falling back to in-process stores", observability.Err(err))
			redisClient = nil
		} else {
			logger.Info("redis connected", observability.String("addr", cfg.RedisAddr))
		}
	}

	var revocationStore revocation.Store
	var paymentStore payment.Store
	if redisClient != nil {
		revocationStore = revocation.NewRedisStore(redisClient)
		paymentStore = payment.NewRedisStore(redisClient, cfg.PaymentsSessionTTL)
	} else {
		revocationStore = revocation.NewInProcessStore(time.Minute)
		paymentStore = payment.NewInProcessStore()
	}

	reg := registry.New()

	authenticator := security.NewJWTAuthenticator(
		[]byte(cfg.CredentialSecret),
		cfg.CredentialIssuer,
		cfg.CredentialAudience,
		cfg.CredentialClockSkew,
		revocationStore,
	)

	limiter := ratelimit.New(ratelimit.Config{
		Default:  ratelimit.Rate{PerSecond: cfg.RateLimitPerSecond, Burst: cfg.RateLimitBurst},
		Issuance: ratelimit.Rate{PerSecond: cfg.IssuanceQuotaPerMinute / 60, Burst: cfg.IssuanceQuotaBurst},
	})

	respCache := cache.New(cfg.CacheMaxBytes)

	proxy := backend.New(backend.Config{
		Endpoint:          cfg.BackendEndpoint,
		PerAttemptTimeout: cfg.BackendPerAttemptTimeout,
		Retry: backend.RetryConfig{
			MaxAttempts:  cfg.BackendMaxRetries,
			InitialDelay: cfg.BackendRetryInitialDelay,
			MaxDelay:     cfg.BackendRetryMaxDelay,
		},
		Breaker: breaker.Config{
			FailureThreshold:  cfg.FailureThreshold,
			RecoveryTimeout:   cfg.RecoveryTimeout,
			HalfOpenMaxProbes: cfg.HalfOpenMaxProbes,
		},
	}, nil, logger)

	tokenSvc := token.New(token.Config{
		Secret:          []byte(cfg.CredentialSecret),
		Issuer:          cfg.CredentialIssuer,
		Audience:        cfg.CredentialAudience,
		AnonymousExpiry: cfg.CredentialExpiryDefault,
		AnonymousGrants: []string{security.PermissionRead},
		PowExpiry:       cfg.PowCredentialExpiry,
		PaymentExpiry:   cfg.PaymentsCredentialExpiry,
	}, limiter, logger)

	challengeSvc, err := challenge.New(challenge.Config{
		TTL:              cfg.ChallengeTTL,
		DifficultyBits:   cfg.ChallengeDifficultyBits,
		Algorithm:        cfg.ChallengeAlgorithm,
		RateMultiplier:   cfg.PowRateMultiplier,
		FailureThreshold: 5,
		FreezeDuration:   10 * time.Minute,
	}, tokenSvc, limiter, logger)
	if err != nil {
		log.Fatalf("challenge service initialization error: %v", err)
	}

	paymentMgr := payment.New(payment.Config{
		Enabled:            cfg.PaymentsEnabled,
		MinConfirmations:   cfg.PaymentsMinConfirmations,
		SessionTTL:         cfg.PaymentsSessionTTL,
		RequireViewingKey:  cfg.PaymentsRequireViewingKey,
		ViewingKeysPresent: cfg.PaymentsViewingKeysPresent,
		PollInterval:       cfg.PaymentsPollInterval,
		DepositAddressPool: cfg.PaymentsDepositAddresses,
		Tiers: map[string]payment.Tier{
			"standard": {
				ID:             "standard",
				RequiredAmount: cfg.PaymentsStandardTierAmount,
				Permissions:    []string{security.PermissionWrite, security.PermissionPaid},
			},
			"premium": {
				ID:             "premium",
				RequiredAmount: cfg.PaymentsPremiumTierAmount,
				Permissions:    []string{security.PermissionWrite, security.PermissionPaid, "premium"},
			},
		},
	}, proxy, paymentStore, revocationStore, tokenSvc, logger)
	defer paymentMgr.Stop()

	orch := orchestrator.New(orchestrator.Config{
		CacheDefaultTTL:              cfg.CacheDefaultTTL,
		CacheServeStaleOnBreakerOpen: cfg.CacheServeStaleOnBreakerOpen,
	}, reg, authenticator, limiter, respCache, proxy, logger)

	startupHandler := handler.NewStartupHandler()
	router := httpx.NewRouter(httpx.Dependencies{
		Config:        cfg,
		Orchestrator:  orch,
		Authenticator: authenticator,
		Proxy:         proxy,
		Tokens:        tokenSvc,
		Challenges:    challengeSvc,
		Payments:      paymentMgr,
		Liveness:      handler.NewLivenessHandler(),
		Readiness:     handler.NewReadinessHandler(0),
		Startup:       startupHandler,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: cfg.HTTPReadHeaderTimeout,
	}

	go func() {
		logger.Info("HTTP server starting", observability.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", observability.Err(err))
			os.Exit(1)
		}
	}()
	startupHandler.MarkReady()

	done := make(chan error, 1)
	go app.GracefulShutdown(server, done)

	if err := <-done; err != nil {
		logger.Error("HTTP shutdown error", observability.Err(err))
	}

	logger.Info("server shutdown complete")
}
