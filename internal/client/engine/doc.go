// Package engine is the parental-control engine owned by the host. It wires
// the credential store, the local state database and the guardian client
// into the pairing, check and identity services, serialises state mutation
// under one mutex, and reports changes on an event bus.
//
// The host constructs one Engine, feeds it navigation commits, asks it
// whether a navigation should be blocked, and runs its periodic loop with
// Run.
package engine
