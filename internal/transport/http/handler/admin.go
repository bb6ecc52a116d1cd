package handler

import (
	"net/http"
	"time"

	"github.com/zecgate/gateway/internal/backend"
	"github.com/zecgate/gateway/internal/domain/security"
	"github.com/zecgate/gateway/internal/transport/http/response"
)

// AdminHandler serves privileged operator endpoints, gated on the "admin"
// permission marker rather than a separate credential scheme.
type AdminHandler struct {
	proxy    *backend.Proxy
	authn    security.Authenticator
	resolver CallerResolver
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(proxy *backend.Proxy, authn security.Authenticator, resolver CallerResolver) *AdminHandler {
	return &AdminHandler{proxy: proxy, authn: authn, resolver: resolver}
}

// ResetBreaker handles POST /admin/breaker/reset.
func (h *AdminHandler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	cred, err := h.authn.Authenticate(r.Context(), h.resolver.BearerToken(r), time.Now())
	if err != nil || !cred.HasPermission(security.PermissionAdmin) {
		response.Error(w, r, http.StatusForbidden, "ADMIN_PERMISSION_REQUIRED", "admin permission required")
		return
	}

	h.proxy.ResetBreaker()
	response.Success(w, r, map[string]string{"state": string(h.proxy.State())})
}
