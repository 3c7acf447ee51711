package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophguard/internal/client/events"
)

// watchEvents prints engine events until ctx is done or the stream closes.
func (a *App) watchEvents(ctx context.Context, evs <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evs:
			if !ok {
				return
			}
			if msg := eventMessage(ev); msg != "" {
				printlnFn(msg)
			}
			a.refreshMode()
		}
	}
}

func eventMessage(ev events.Event) string {
	switch e := ev.(type) {
	case events.BlockedChanged:
		if e.Blocked {
			return "[guard] browsing is now blocked"
		}
		return "[guard] browsing is allowed again"
	case events.Warning:
		if e.Severity.ExposesSeconds() {
			return fmt.Sprintf("[guard] %s: %s left", e.Severity, formatRemaining(e.RemainingSeconds))
		}
		return fmt.Sprintf("[guard] %s", e.Severity)
	case events.Unpaired:
		if e.Revoked {
			return "[guard] the guardian removed this device"
		}
		return "[guard] device unpaired"
	case events.NeedChildSelection:
		return "[guard] who is using this device? run 'children' and 'select <id>'"
	case events.ChildChanged:
		if e.Child == nil {
			return ""
		}
		return "[guard] now used by " + e.Child.Name
	}
	return ""
}
