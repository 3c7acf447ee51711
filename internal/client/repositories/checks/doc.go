// Package checks persists the latest CheckResult per child so that the
// cache survives restarts. An expired row is kept: it is the input to
// offline fallback, never a fresh answer.
package checks
