// Package cli provides an interactive host for the enforcement engine.
//
// It stands in for a browser shell: it wires configuration, local storage,
// the guardian client and the engine, then runs a REPL in which navigations
// are typed instead of clicked. A background loop prints engine events
// (block state, warnings, unpairing) as they happen.
//
// Commands:
//   - pair qr|pin, cancel, unpair
//   - children, select <id>, switch
//   - nav <url>, status, more <minutes> [reason]
//   - enable, disable
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
