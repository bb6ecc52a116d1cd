package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// fakeResolver is a test CallerResolver with fixed return values.
type fakeResolver struct {
	callerAddress string
	bearerToken   string
}

func (f fakeResolver) CallerAddress(_ *http.Request) string { return f.callerAddress }
func (f fakeResolver) BearerToken(_ *http.Request) string   { return f.bearerToken }

// withChiRouteContext attaches a chi route context carrying URL params, for
// tests that call a handler directly without routing through a chi.Router.
func withChiRouteContext(r *http.Request, rctx *chi.Context) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
