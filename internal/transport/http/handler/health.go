package handler

import (
	"net/http"

	"github.com/zecgate/gateway/internal/backend"
	"github.com/zecgate/gateway/internal/breaker"
	"github.com/zecgate/gateway/internal/transport/http/response"
)

// GatewayHealthHandler serves /health: a caller-facing summary distinct from
// the liveness/readiness/startup probes, reporting degraded rather than
// failing outright while the backend breaker recovers.
type GatewayHealthHandler struct {
	proxy *backend.Proxy
}

// NewGatewayHealthHandler constructs a GatewayHealthHandler.
func NewGatewayHealthHandler(proxy *backend.Proxy) *GatewayHealthHandler {
	return &GatewayHealthHandler{proxy: proxy}
}

type healthDocument struct {
	Status        string `json:"status"`
	BackendState  string `json:"backend_circuit_state"`
}

func (h *GatewayHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	state := h.proxy.State()

	status := "healthy"
	switch state {
	case breaker.StateOpen:
		status = "unhealthy"
	case breaker.StateHalfOpen:
		status = "degraded"
	}

	doc := healthDocument{Status: status, BackendState: string(state)}
	if status == "unhealthy" {
		response.SuccessStatus(w, r, http.StatusServiceUnavailable, doc)
		return
	}
	response.Success(w, r, doc)
}
