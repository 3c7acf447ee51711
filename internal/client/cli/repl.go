package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isPaired() bool
	Pair(ctx context.Context, args []string) error
	CancelPairing(ctx context.Context) error
	Unpair(ctx context.Context) error
	Children(ctx context.Context) error
	Select(ctx context.Context, args []string) error
	Switch(ctx context.Context) error
	Navigate(ctx context.Context, args []string) error
	ShowStatus(ctx context.Context) error
	MoreTime(ctx context.Context, args []string) error
	Enable(ctx context.Context, on bool) error
}

// runREPL reads commands from scanner and dispatches them to a until EOF
// or "exit"/"quit".
//
//	Not paired:
//	  - pair qr|pin     — start pairing and wait for the guardian
//	  - cancel          — cancel the pending pairing session
//	  - status          — show engine state
//	  - enable|disable  — toggle enforcement
//	  - exit | quit     — leave the program
//
//	Paired:
//	  - children        — list the roster
//	  - select <id>     — choose who is using the device (asks for a PIN)
//	  - switch          — drop the current selection
//	  - nav <url>       — simulate a top-level navigation
//	  - more <min> [..] — ask the guardian for more time
//	  - unpair          — forget this device's pairing
//
// Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("gg %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isPaired() {
				printlnFn("Available commands: children, select <id>, switch, nav <url>, status, more <minutes> [reason], enable, disable, unpair, exit")
			} else {
				printlnFn("Available commands: pair qr|pin, cancel, status, enable, disable, exit")
			}

		case "pair":
			err = a.Pair(ctx, args)

		case "cancel":
			err = a.CancelPairing(ctx)

		case "unpair":
			err = a.Unpair(ctx)

		case "children", "ls":
			err = a.Children(ctx)

		case "select":
			err = a.Select(ctx, args)

		case "switch":
			err = a.Switch(ctx)

		case "nav", "open":
			err = a.Navigate(ctx, args)

		case "status", "st":
			err = a.ShowStatus(ctx)

		case "more":
			err = a.MoreTime(ctx, args)

		case "enable":
			err = a.Enable(ctx, true)

		case "disable":
			err = a.Enable(ctx, false)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("error:", err)
		}
	}
}
