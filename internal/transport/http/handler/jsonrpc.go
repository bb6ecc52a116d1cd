// Package handler implements the gateway's HTTP-facing handlers: the
// primary JSON-RPC endpoint, the proof-of-work/token/payment REST surface,
// the admin breaker reset, and the liveness/readiness/startup probes.
package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/zecgate/gateway/internal/config"
	"github.com/zecgate/gateway/internal/jsonrpc"
	"github.com/zecgate/gateway/internal/orchestrator"
	"github.com/zecgate/gateway/internal/transport/http/middleware"
)

// CallerResolver derives the caller address and bearer token the Orchestrator
// needs from an inbound HTTP request. Implemented by the transport package's
// DeriveCallerAddress/BearerToken helpers; declared here as an interface to
// avoid an import cycle between handler and its parent http package.
type CallerResolver interface {
	CallerAddress(r *http.Request) string
	BearerToken(r *http.Request) string
}

// JSONRPCHandler serves the gateway's primary "/" endpoint.
type JSONRPCHandler struct {
	orch            *orchestrator.Orchestrator
	resolver        CallerResolver
	developmentMode bool
	maxBodyBytes    int64
}

// NewJSONRPCHandler constructs a JSONRPCHandler.
func NewJSONRPCHandler(orch *orchestrator.Orchestrator, resolver CallerResolver, cfg *config.Config) *JSONRPCHandler {
	return &JSONRPCHandler{
		orch:            orch,
		resolver:        resolver,
		developmentMode: cfg.DevelopmentMode,
		maxBodyBytes:    cfg.RequestSizeLimit,
	}
}

func (h *JSONRPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes+1))
	if err != nil {
		writeParseError(w, nil)
		return
	}
	if int64(len(body)) > h.maxBodyBytes {
		writeParseError(w, nil)
		return
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeParseError(w, nil)
		return
	}

	in := orchestrator.Inbound{
		CallerAddress:   h.resolver.CallerAddress(r),
		UserAgent:       r.UserAgent(),
		BearerToken:     h.resolver.BearerToken(r),
		RequestID:       middleware.GetRequestID(r.Context()),
		DevelopmentMode: h.developmentMode,
	}

	resp := h.orch.Handle(r.Context(), in, &req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeParseError(w http.ResponseWriter, id json.RawMessage) {
	resp := jsonrpc.NewError(id, -32700, "parse error", nil)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
