// Package orchestrator implements the Request Orchestrator: the ordered
// pipeline every inbound JSON-RPC call passes through, from caller-address
// derivation to backend dispatch and cache population.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/zecgate/gateway/internal/backend"
	"github.com/zecgate/gateway/internal/cache"
	domainerrors "github.com/zecgate/gateway/internal/domain/errors"
	"github.com/zecgate/gateway/internal/domain/registry"
	"github.com/zecgate/gateway/internal/domain/security"
	"github.com/zecgate/gateway/internal/jsonrpc"
	"github.com/zecgate/gateway/internal/observability"
	"github.com/zecgate/gateway/internal/ratelimit"
)

// Inbound is everything the transport layer extracts from the HTTP request
// before handing a call to the Orchestrator.
type Inbound struct {
	CallerAddress   string
	UserAgent       string
	BearerToken     string
	RequestID       string
	DevelopmentMode bool
}

// Config configures an Orchestrator.
type Config struct {
	CacheDefaultTTL              time.Duration
	CacheServeStaleOnBreakerOpen bool
}

// Orchestrator wires the registry, validator, authenticator, rate limiter,
// cache, and backend proxy into the single pipeline every RPC call runs.
type Orchestrator struct {
	cfg           Config
	registry      *registry.Registry
	authenticator security.Authenticator
	limiter       *ratelimit.Limiter
	cache         *cache.Cache
	proxy         *backend.Proxy
	logger        observability.Logger
	now           func() time.Time
}

// New constructs an Orchestrator.
func New(cfg Config, reg *registry.Registry, authenticator security.Authenticator, limiter *ratelimit.Limiter, respCache *cache.Cache, proxy *backend.Proxy, logger observability.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:           cfg,
		registry:      reg,
		authenticator: authenticator,
		limiter:       limiter,
		cache:         respCache,
		proxy:         proxy,
		logger:        logger,
		now:           time.Now,
	}
}

// Handle runs the full 12-stage pipeline for a single JSON-RPC request and
// always returns a *jsonrpc.Response — errors are represented in the
// envelope, never as a Go error, so the transport layer has one return path.
func (o *Orchestrator) Handle(ctx context.Context, in Inbound, req *jsonrpc.Request) *jsonrpc.Response {
	if req.JSONRPC != jsonrpc.Version {
		return o.deny(req.ID, domainerrors.CodeMalformedRequest, "unsupported jsonrpc version")
	}

	// Stage 1-3: derive caller address (already done by the transport layer
	// into in.CallerAddress), extract bearer, build Security Context.
	secCtx := &security.Context{
		CallerAddress:   in.CallerAddress,
		UserAgent:       in.UserAgent,
		BearerCredential: in.BearerToken,
		Timestamp:       o.now(),
		RequestID:       in.RequestID,
		DevelopmentMode: in.DevelopmentMode,
	}

	// Stage 4: Authenticator. An absent credential leaves the context with no
	// permissions; it is refused after registry lookup for non-public methods.
	bypassed := secCtx.Bypassed()
	if !bypassed && secCtx.BearerCredential != "" {
		cred, err := o.authenticator.Authenticate(ctx, secCtx.BearerCredential, secCtx.Timestamp)
		if err != nil {
			o.logger.Warn("authentication failed", observability.String("caller", in.CallerAddress), observability.Err(err))
			return o.deny(req.ID, domainerrors.CodeAuthenticationFailed, "authentication failed")
		}
		secCtx.GrantedPermissions = cred.PermissionSet()
	}

	// Stage 5: Registry lookup.
	method, ok := o.registry.Lookup(req.Method)
	if !ok {
		return o.deny(req.ID, domainerrors.CodeMethodNotAllowed, "method not allowed")
	}

	// Stage 6: Permissions check (development-mode loopback bypass exempted).
	if !bypassed && secCtx.BearerCredential == "" && method.SecurityLevel != registry.LevelPublic {
		return o.deny(req.ID, domainerrors.CodeAuthenticationFailed, "missing bearer credential")
	}
	if !bypassed && !secCtx.HasAllPermissions(method.RequiredPermissions) {
		return o.deny(req.ID, domainerrors.CodeAuthorizationFailed, "missing required permission")
	}

	// Stage 7: Parameter Validator.
	positional, named, parseErr := jsonrpc.ParseParams(req.Params)
	if parseErr != nil {
		return o.deny(req.ID, domainerrors.CodeMalformedRequest, "invalid params shape")
	}
	if validateErr := registry.Validate(method, positional, named); validateErr != nil {
		var ve *registry.ValidationError
		if errors.As(validateErr, &ve) {
			return o.denyWithData(req.ID, domainerrors.CodeInvalidParameters, "parameter validation failed", map[string]any{
				"rule_name": ve.RuleName,
				"reason":    ve.Reason,
			})
		}
		return o.deny(req.ID, domainerrors.CodeInvalidParameters, "parameter validation failed")
	}

	// Stage 8: Rate Limiter.
	multiplier := 1.0
	if !bypassed {
		multiplier = ratelimit.RateMultiplier(permissionSlice(secCtx.GrantedPermissions))
	}
	if allowed, retryAfter := o.limiter.Allow(in.CallerAddress, req.Method, multiplier); !allowed {
		return o.denyWithData(req.ID, domainerrors.CodeRateLimitExceeded, "rate limit exceeded", map[string]any{
			"retry_after_seconds": retryAfter.Seconds(),
		})
	}

	fingerprint := cache.Fingerprint(req.Method, positional, named)
	ttl := o.cfg.CacheDefaultTTL
	if method.CacheTTLOverrideSecs > 0 {
		ttl = time.Duration(method.CacheTTLOverrideSecs) * time.Second
	}

	// Stage 9-11: cache lookup for read-only methods, coalesced backend call
	// on miss, populate cache on success.
	if method.ReadOnly {
		result, err, _ := o.cache.GetOrLoad(fingerprint, ttl, func() ([]byte, error) {
			return o.callBackend(ctx, req.ID, req.Method, req.Params)
		})
		if err != nil {
			return o.handleBackendErr(req.ID, fingerprint, err)
		}
		resp, marshalErr := jsonrpc.NewResult(req.ID, json.RawMessage(result))
		if marshalErr != nil {
			return o.deny(req.ID, domainerrors.CodeInternalError, "failed to encode result")
		}
		return resp
	}

	raw, err := o.callBackend(ctx, req.ID, req.Method, req.Params)
	if err != nil {
		return o.handleBackendErr(req.ID, fingerprint, err)
	}
	resp, marshalErr := jsonrpc.NewResult(req.ID, json.RawMessage(raw))
	if marshalErr != nil {
		return o.deny(req.ID, domainerrors.CodeInternalError, "failed to encode result")
	}
	return resp
}

func (o *Orchestrator) callBackend(ctx context.Context, id json.RawMessage, method string, params json.RawMessage) ([]byte, error) {
	result, err := o.proxy.Call(ctx, id, method, params)
	if err != nil {
		return nil, err
	}
	return []byte(result), nil
}

// Stage 12: on breaker-open, serve a stale cached value if configured to and
// one is present; otherwise surface backend_unavailable or backend_error.
func (o *Orchestrator) handleBackendErr(id json.RawMessage, fingerprint string, err error) *jsonrpc.Response {
	var backendErr *backend.BackendError
	if errors.As(err, &backendErr) {
		return jsonrpc.NewError(id, backendErr.Code, backendErr.Message, nil)
	}
	if errors.Is(err, backend.ErrUnavailable) {
		if o.cfg.CacheServeStaleOnBreakerOpen {
			if stale, staleErr := o.cache.Get(fingerprint); staleErr == nil {
				resp, marshalErr := jsonrpc.NewResult(id, json.RawMessage(stale))
				if marshalErr == nil {
					resp.Result = append(append(json.RawMessage{}, resp.Result...))
					return resp
				}
			}
		}
		return o.deny(id, domainerrors.CodeBackendUnavailable, "backend unavailable")
	}
	o.logger.Error("unexpected backend error", observability.Err(err))
	return o.deny(id, domainerrors.CodeInternalError, "internal error")
}

func (o *Orchestrator) deny(id json.RawMessage, code, message string) *jsonrpc.Response {
	return jsonrpc.NewError(id, domainerrors.JSONRPCCode(code), message, nil)
}

func (o *Orchestrator) denyWithData(id json.RawMessage, code, message string, data any) *jsonrpc.Response {
	return jsonrpc.NewError(id, domainerrors.JSONRPCCode(code), message, data)
}

func permissionSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}
