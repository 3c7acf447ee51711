// Package policy approximates guardian decisions without connectivity and
// turns remaining time into escalating warnings.
//
// Everything here is pure: callers pass the clock and own persistence. The
// offline evaluator combines the last check result with the per-child
// OfflineSnapshot (time windows in the home timezone plus running balances)
// and never allows more than either of them would.
package policy
