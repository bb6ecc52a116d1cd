package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zecgate/gateway/internal/cache"
	"github.com/zecgate/gateway/internal/config"
	"github.com/zecgate/gateway/internal/domain/registry"
	"github.com/zecgate/gateway/internal/domain/security"
	"github.com/zecgate/gateway/internal/observability"
	"github.com/zecgate/gateway/internal/orchestrator"
	"github.com/zecgate/gateway/internal/ratelimit"
)

func newTestJSONRPCHandler(t *testing.T) *JSONRPCHandler {
	t.Helper()
	limiter := ratelimit.New(ratelimit.Config{Default: ratelimit.Rate{PerSecond: 100, Burst: 100}})
	t.Cleanup(limiter.Stop)
	authn := security.NewJWTAuthenticator([]byte(testSecret), "zecgate", "zecgate-clients", time.Second, nil)
	orch := orchestrator.New(orchestrator.Config{CacheDefaultTTL: time.Second}, registry.New(), authn, limiter, cache.New(1<<20), newTestProxy(t), observability.NewNopLoggerInterface())
	cfg := &config.Config{RequestSizeLimit: 1 << 20}
	return NewJSONRPCHandler(orch, fakeResolver{callerAddress: "203.0.113.1"}, cfg)
}

func TestJSONRPCHandler_MalformedBody(t *testing.T) {
	h := newTestJSONRPCHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "-32700")
}

func TestJSONRPCHandler_UnknownMethod(t *testing.T) {
	h := newTestJSONRPCHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"definitely_not_a_method"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "method not allowed")
}

func TestJSONRPCHandler_RejectsGet(t *testing.T) {
	h := newTestJSONRPCHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
