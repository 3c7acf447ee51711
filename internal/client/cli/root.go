package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

func (a *App) getStatus() string {
	var parts []string
	if a.engine != nil && a.engine.IsPaired() {
		if c := a.engine.CurrentChild(); c != nil {
			parts = append(parts, c.Name)
		} else {
			parts = append(parts, "nobody")
		}
	} else if a.engine != nil {
		parts = append(parts, "unpaired")
	}
	if m := a.mode(); m != "" {
		parts = append(parts, string(m))
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, " "))
}

// Root runs the REPL on the app's input until the user exits.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to GophGuard (type 'help' for commands)")
	if a.engine.IsPaired() && a.engine.Status().NeedSelection {
		printlnFn("This device is shared. Run 'children' and 'select <id>' to continue.")
	}
	a.refreshMode()

	scanner := bufio.NewScanner(a.reader)
	runREPL(ctx, a, a.getStatus, scanner)
}
