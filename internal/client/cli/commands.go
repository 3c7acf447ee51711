package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/activity"
	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dustin/go-humanize"
)

var errUsage = errors.New("usage")

// Pair opens a pairing session and prints what the guardian needs to scan
// or type. Progress is printed from the background poll loop.
func (a *App) Pair(ctx context.Context, args []string) error {
	t := models.TransportQR
	if len(args) > 0 {
		t = models.Transport(strings.ToLower(args[0]))
	}
	if !t.Valid() {
		return fmt.Errorf("%w: pair qr|pin", errUsage)
	}

	var last models.PairingStatus
	sess, err := a.engine.StartPairing(ctx, t, func(s models.PairingSession, err error) {
		if err != nil && !s.Status.Terminal() {
			a.log.Debug(ctx, "pairing poll failed", "error", err)
			return
		}
		if s.Status == last {
			return
		}
		last = s.Status
		printlnFn(pairingMessage(s))
	})
	if err != nil {
		return err
	}

	switch t {
	case models.TransportQR:
		printlnFn("Scan this code in the guardian app:")
		printlnFn("  " + sess.QRPayload)
	case models.TransportPIN:
		printlnFn("Enter this code in the guardian app: " + sess.PinCode)
	}
	printlnFn("Expires " + humanize.Time(sess.ExpiresAt) + ". Type 'cancel' to abort.")
	return nil
}

func pairingMessage(s models.PairingSession) string {
	switch s.Status {
	case models.PairingScanned:
		return "Code scanned, waiting for the guardian to confirm..."
	case models.PairingCompleted:
		return "Paired."
	case models.PairingExpired:
		return "Pairing code expired. Run 'pair' again."
	case models.PairingFailed:
		return "Pairing failed."
	case models.PairingCancelled:
		return "Pairing cancelled."
	}
	return "Pairing: " + string(s.Status)
}

// CancelPairing cancels the current pairing session, if any.
func (a *App) CancelPairing(ctx context.Context) error {
	s := a.engine.PairingSession()
	if s == nil || s.Status.Terminal() {
		printlnFn("No pairing in progress.")
		return nil
	}
	return a.engine.CancelPairing(ctx, s.ID)
}

// Unpair forgets this device's pairing and all local state.
func (a *App) Unpair(ctx context.Context) error {
	if !a.engine.IsPaired() {
		printlnFn("Not paired.")
		return nil
	}
	return a.engine.Unpair(ctx)
}

// Children prints the roster, marking the current selection.
func (a *App) Children(_ context.Context) error {
	if !a.engine.IsPaired() {
		return common.ErrNotPaired
	}
	current := a.engine.CurrentChild()
	for _, c := range a.engine.Roster() {
		mark := " "
		if current != nil && current.ID == c.ID {
			mark = "*"
		}
		lock := ""
		if c.HasPin() {
			lock = " (PIN)"
		}
		role := ""
		if c.IsParent() {
			role = " [parent]"
		}
		printlnFn(fmt.Sprintf("%s %d  %s%s%s", mark, c.ID, c.Name, role, lock))
	}
	return nil
}

// Select switches to the child with the given id, asking for a PIN when one
// is configured.
func (a *App) Select(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: select <id>", errUsage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: select <id>", errUsage)
	}
	child, ok := a.engine.Roster().Find(id)
	if !ok {
		return common.ErrNotFound
	}

	var pin []byte
	if child.HasPin() {
		if pin, err = GetPin(a.reader, a.out); err != nil {
			return err
		}
		defer common.WipeByteArray(pin)
	}

	selected, err := a.engine.SelectChild(ctx, id, string(pin))
	if err != nil {
		return err
	}
	printlnFn("Now using the device as " + selected.Name + ".")
	return nil
}

// Switch drops the current selection so another child can pick up the device.
func (a *App) Switch(ctx context.Context) error {
	if !a.engine.IsPaired() {
		return common.ErrNotPaired
	}
	return a.engine.ClearCurrentChild(ctx)
}

// Navigate simulates a top-level navigation: the cached decision is
// consulted first, and an allowed navigation is committed.
func (a *App) Navigate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: nav <url>", errUsage)
	}
	url := args[0]
	if !strings.Contains(url, "://") {
		url = "https://" + url
	}

	if a.engine.ShouldBlockNavigation(url) {
		printlnFn(fmt.Sprintf("BLOCKED %s (%s): %s", activity.Host(url), activity.Classify(url), a.blockReason()))
		return nil
	}
	a.engine.OnNavigationCommitted(ctx, url)
	printlnFn(fmt.Sprintf("opened %s (%s)", activity.Host(url), activity.Classify(url)))
	return nil
}

func (a *App) blockReason() string {
	st := a.engine.Status()
	switch {
	case st.NeedSelection:
		return "choose who is using this device first"
	case st.Decision.Banned:
		return "this activity is banned"
	case st.Decision.ScheduledBlock:
		return "blocked by schedule"
	}
	return "time is up"
}

// ShowStatus prints the engine state.
func (a *App) ShowStatus(_ context.Context) error {
	a.refreshMode()
	st := a.engine.Status()

	printlnFn(fmt.Sprintf("paired: %t  enabled: %t  mode: %s", st.Paired, st.Enabled, a.mode()))
	if st.Pairing != nil && !st.Pairing.Status.Terminal() {
		printlnFn(fmt.Sprintf("pairing: %s via %s, expires %s", st.Pairing.Status, st.Pairing.Transport, humanize.Time(st.Pairing.ExpiresAt)))
	}
	if !st.Paired {
		return nil
	}
	switch {
	case st.Child != nil:
		printlnFn("child: " + st.Child.Name)
	case st.NeedSelection:
		printlnFn("child: none selected")
	}
	printlnFn(fmt.Sprintf("activity: %s  allowed: %t  remaining: %s  level: %s",
		st.Activity, st.Decision.Allowed, formatRemaining(st.Decision.RemainingSeconds), st.Severity))
	return nil
}

func formatRemaining(seconds int64) string {
	switch {
	case seconds < 0:
		return "unlimited"
	case seconds == 0:
		return "none"
	}
	now := time.Now()
	return strings.TrimSpace(humanize.RelTime(now, now.Add(time.Duration(seconds)*time.Second), "", ""))
}

// MoreTime asks the guardian for additional minutes on the current activity.
func (a *App) MoreTime(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: more <minutes> [reason]", errUsage)
	}
	minutes, err := strconv.Atoi(args[0])
	if err != nil || minutes <= 0 {
		return fmt.Errorf("%w: more <minutes> [reason]", errUsage)
	}
	id, err := a.engine.RequestMoreTime(ctx, time.Duration(minutes)*time.Minute, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	printlnFn("Request sent (" + id + "). The guardian will be notified.")
	return nil
}

// Enable turns enforcement on or off.
func (a *App) Enable(ctx context.Context, on bool) error {
	if err := a.engine.SetEnabled(ctx, on); err != nil {
		return err
	}
	a.refreshMode()
	if on {
		printlnFn("Enforcement enabled.")
	} else {
		printlnFn("Enforcement disabled.")
	}
	return nil
}
