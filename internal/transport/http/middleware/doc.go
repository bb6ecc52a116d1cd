// Package middleware provides HTTP middleware for the transport layer.
//
// This package contains the cross-cutting concerns applied to every HTTP
// request before it reaches the router: request ID propagation, response
// metrics capture, security headers, and a coarse per-IP rate limiter. The
// gateway's actual security pipeline (bearer authentication, permission
// checks, per-caller/per-method rate limiting) is owned by the Orchestrator,
// not by generic middleware — see internal/orchestrator.
//
// # Chi Router Integration
//
//	r := chi.NewRouter()
//	r.Use(middleware.RequestID)
//	r.Use(middleware.SecureHeaders)
//	r.Use(middleware.Metrics)
//	r.Use(middleware.IPRateLimit(requestsPerSecond, burst))
//
// # Available Middleware
//
//   - RequestID: generates or passes through X-Request-ID
//   - SecureHeaders: OWASP-recommended response headers
//   - Metrics: Prometheus counters/histograms per method+path+status
//   - IPRateLimit: coarse defense-in-depth limiter ahead of the Orchestrator's
//     own per-caller/per-method buckets, backed by go-chi/httprate
package middleware
