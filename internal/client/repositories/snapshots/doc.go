// Package snapshots persists the per-child OfflineSnapshot: time windows,
// running balances, deficit and home timezone.
package snapshots
