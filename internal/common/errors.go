// Package common defines shared constants and sentinel errors used across
// GophGuard components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Transport errors. ErrNetworkUnavailable and ErrServer are transient and
	// never surface to a browsing check as a hard failure.
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrServer             = errors.New("server error")

	// ErrMalformedResponse is retried like ErrServer but logged separately.
	// errors.Is(ErrMalformedResponse, ErrServer) reports true.
	ErrMalformedResponse error = &malformedError{}

	// ErrUnauthorized is the revocation signal: a 401 on any endpoint.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnpaired is returned by operations that triggered or observed
	// revocation. The UI shows "no longer managed" rather than "blocked".
	ErrUnpaired = errors.New("device is no longer paired")

	// Pairing errors.
	ErrSessionExpired  = errors.New("pairing session expired")
	ErrNoActiveSession = errors.New("no active pairing session")
	ErrPairingFailed   = errors.New("pairing failed")
	ErrAlreadyPaired   = errors.New("device is already paired")

	// Local state errors.
	ErrNotPaired  = errors.New("device is not paired")
	ErrInvalidPin = errors.New("invalid pin")
)

type malformedError struct{}

func (*malformedError) Error() string { return "malformed response" }

func (*malformedError) Is(target error) bool { return target == ErrServer }

// IsTransient reports whether err should be answered with stale cache
// instead of being surfaced.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable) || errors.Is(err, ErrServer)
}
