// Package response provides HTTP response helpers for consistent API
// responses across the gateway's REST-style endpoints (proof-of-work,
// token issuance, and payment session management). The JSON-RPC endpoint
// does not use this package; it answers with jsonrpc.Response envelopes.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/zecgate/gateway/internal/transport/http/middleware"
)

// Envelope is the standard REST response shape: exactly one of Data or
// Error is populated, never both.
type Envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
	Meta  Meta       `json:"meta"`
}

// Meta carries response metadata, currently just the request id used to
// correlate a REST call with gateway logs.
type Meta struct {
	RequestID string `json:"request_id"`
}

// ErrorBody is the error shape inside Envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newMeta(r *http.Request) Meta {
	return Meta{RequestID: middleware.GetRequestID(r.Context())}
}

// writeJSON writes status and data as JSON. Encoding errors cannot change
// the response at this point, so they are simply discarded.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Success writes a 200 OK envelope carrying data.
func Success(w http.ResponseWriter, r *http.Request, data any) {
	writeJSON(w, http.StatusOK, Envelope{Data: data, Meta: newMeta(r)})
}

// SuccessStatus writes an envelope carrying data with a caller-chosen status.
func SuccessStatus(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, Envelope{Data: data, Meta: newMeta(r)})
}

// Error writes an error envelope with the given HTTP status, code, and message.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, Envelope{Error: &ErrorBody{Code: code, Message: message}, Meta: newMeta(r)})
}
