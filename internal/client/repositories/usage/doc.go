// Package usage persists the offline usage ledger: seconds of browsing
// recorded locally per child, day and activity that the guardian service
// has not acknowledged yet.
//
// Rows are additive. A successful check subtracts exactly what it sent, so
// ticks recorded while the request was in flight are kept for the next one.
package usage
