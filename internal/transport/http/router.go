// Package http wires the gateway's chi router: the primary JSON-RPC
// endpoint, the proof-of-work/token/payment REST surface, the admin breaker
// reset, Prometheus metrics, and the Kubernetes-style health probes.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zecgate/gateway/internal/backend"
	"github.com/zecgate/gateway/internal/challenge"
	"github.com/zecgate/gateway/internal/config"
	"github.com/zecgate/gateway/internal/domain/security"
	"github.com/zecgate/gateway/internal/orchestrator"
	"github.com/zecgate/gateway/internal/payment"
	"github.com/zecgate/gateway/internal/token"
	"github.com/zecgate/gateway/internal/transport/http/handler"
	"github.com/zecgate/gateway/internal/transport/http/middleware"
)

// Dependencies bundles every component NewRouter needs to construct the
// gateway's HTTP handlers.
type Dependencies struct {
	Config        *config.Config
	Orchestrator  *orchestrator.Orchestrator
	Authenticator security.Authenticator
	Proxy         *backend.Proxy
	Tokens        *token.Service
	Challenges    *challenge.Service
	Payments      *payment.Manager

	Liveness  http.Handler
	Readiness http.Handler
	Startup   http.Handler
}

// NewRouter constructs the gateway's chi router.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.Metrics)
	r.Use(middleware.IPRateLimit(deps.Config.IPRateLimitPerSecond, deps.Config.IPRateLimitBurst))

	resolver := newRequestResolver(deps.Config.TrustedProxyHeaders)

	jsonrpcHandler := handler.NewJSONRPCHandler(deps.Orchestrator, resolver, deps.Config)
	r.Post("/", jsonrpcHandler.ServeHTTP)

	challengeHandler := handler.NewChallengeHandler(deps.Challenges, resolver)
	r.Post("/pow/challenge", challengeHandler.ServeHTTP)

	tokenHandler := handler.NewTokenHandler(deps.Tokens, deps.Challenges, deps.Authenticator, resolver)
	r.Post("/token/issue", tokenHandler.Issue)
	r.Post("/token/validate", tokenHandler.Validate)

	paymentsHandler := handler.NewPaymentsHandler(deps.Payments)
	r.Post("/payments/request", paymentsHandler.Request)
	r.Post("/payments/submit", paymentsHandler.Submit)
	r.Get("/payments/status/{payment_id}", paymentsHandler.Status)

	adminHandler := handler.NewAdminHandler(deps.Proxy, deps.Authenticator, resolver)
	r.Post("/admin/breaker/reset", adminHandler.ResetBreaker)

	gatewayHealth := handler.NewGatewayHealthHandler(deps.Proxy)
	r.Get("/health", gatewayHealth.ServeHTTP)

	r.Get("/healthz", deps.Liveness.ServeHTTP)
	r.Get("/readyz", deps.Readiness.ServeHTTP)
	r.Get("/startupz", deps.Startup.ServeHTTP)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
