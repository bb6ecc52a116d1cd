// Package domain contains the core business entities and interfaces.
//
// This package is the innermost layer of the gateway: the JSON-RPC method
// registry and parameter validator (registry subpackage), bearer credential
// and authentication types (security subpackage), structured domain errors
// (errors subpackage), and the PII redaction contract used by audit logging
// (Redactor, in this package).
//
// The domain layer has no dependency on transport, backend, or storage
// packages — it defines the vocabulary everything else is built from.
package domain
