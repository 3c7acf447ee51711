// Package services contains the engine's application services: the pairing
// session machine, the check/cache engine and the session/identity manager.
//
// Services talk to the guardian through client.Client, keep non-sensitive
// state in the local SQLite repositories and credentials in a
// credstore.Store. None of them holds a lock across a network call.
package services
