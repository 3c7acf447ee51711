// Package client talks to the guardian service.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface): pairing
//     init/status, the policy check and time requests.
//  2. A JSON-over-HTTP implementation (see HTTPClient) that stamps every call
//     with a request id, bounds it with a per-request timeout, retries 5xx
//     answers with exponential backoff and maps failures to sentinel errors.
//  3. Wire types (the *Body structs) shared with the in-process fake service
//     used by tests.
//
// # Error Handling
//
// Failures are mapped to the sentinels in internal/common and matched with
// errors.Is: ErrUnauthorized (HTTP 401, revocation), ErrNetworkUnavailable,
// ErrServer and ErrMalformedResponse. Responses are validated before they are
// turned into models; a missing required field fails closed.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation.
package client
