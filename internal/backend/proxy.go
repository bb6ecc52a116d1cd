// Package backend implements the proxy that serializes, sends, retries, and
// decodes JSON-RPC calls to the backend daemon, guarded by a circuit breaker.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/zecgate/gateway/internal/breaker"
	"github.com/zecgate/gateway/internal/infra/wrapper"
	"github.com/zecgate/gateway/internal/jsonrpc"
	"github.com/zecgate/gateway/internal/observability"
)

// ErrUnavailable indicates the breaker is open or the per-attempt retry
// budget was exhausted without a usable response.
var ErrUnavailable = errors.New("backend: unavailable")

// BackendError wraps an error envelope the backend daemon itself returned;
// the gateway forwards its code and message verbatim.
type BackendError struct {
	Code    int
	Message string
}

func (e *BackendError) Error() string { return e.Message }

// Config configures a Proxy.
type Config struct {
	Endpoint         string
	PerAttemptTimeout time.Duration
	Retry            RetryConfig
	Breaker          breaker.Config
}

// Proxy sends JSON-RPC 2.0 requests to the backend daemon over HTTP, wrapped
// in a circuit breaker and bounded retry.
type Proxy struct {
	cfg     Config
	client  *http.Client
	breaker *breaker.Breaker
	logger  observability.Logger
}

// New constructs a Proxy. client may be nil to use a default *http.Client.
func New(cfg Config, client *http.Client, logger observability.Logger) *Proxy {
	if client == nil {
		client = &http.Client{}
	}
	return &Proxy{
		cfg:     cfg,
		client:  client,
		breaker: breaker.New("backend", cfg.Breaker, logger),
		logger:  logger,
	}
}

// Call forwards a single JSON-RPC call to the backend daemon and returns its
// decoded result payload. A *BackendError means the backend itself answered
// with an error envelope; any other error means the gateway could not reach
// or parse a response from the backend within its retry/breaker budget.
func (p *Proxy) Call(ctx context.Context, id json.RawMessage, method string, params json.RawMessage) (json.RawMessage, error) {
	result, err := p.breaker.Execute(ctx, func() (any, error) {
		var resp *jsonrpc.Response
		retryErr := doWithRetry(ctx, p.cfg.Retry, p.logger, func(attemptCtx context.Context) error {
			r, callErr := p.doCall(attemptCtx, id, method, params)
			if callErr != nil {
				return callErr
			}
			resp = r
			return nil
		})
		if retryErr != nil {
			return nil, retryErr
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, breaker.ErrOpen) {
			return nil, ErrUnavailable
		}
		var exhausted *ErrRetriesExhausted
		if errors.As(err, &exhausted) {
			return nil, ErrUnavailable
		}
		return nil, err
	}

	resp := result.(*jsonrpc.Response)
	if resp.Error != nil {
		return nil, &BackendError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp.Result, nil
}

func (p *Proxy) doCall(ctx context.Context, id json.RawMessage, method string, params json.RawMessage) (*jsonrpc.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PerAttemptTimeout)
	defer cancel()

	body, err := json.Marshal(jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := wrapper.DoRequest(ctx, p.client, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var rpcResp jsonrpc.Response
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, err
	}
	return &rpcResp, nil
}

// State exposes the underlying breaker's state, used by the /health endpoint.
func (p *Proxy) State() breaker.State { return p.breaker.State() }

// ResetBreaker forces the backend breaker closed. Exposed for the privileged
// admin recovery endpoint only.
func (p *Proxy) ResetBreaker() { p.breaker.Reset() }
