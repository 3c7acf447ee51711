package engine

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/activity"
	"github.com/dmitrijs2005/gophguard/internal/client/events"
	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/client/policy"
	"github.com/dmitrijs2005/gophguard/internal/common"
)

// Status is a point-in-time view for the host UI.
type Status struct {
	Paired        bool
	Enabled       bool
	Child         *models.Child
	NeedSelection bool
	Activity      models.ActivityID
	Decision      models.Decision
	Severity      policy.Severity
	Blocked       bool
	Stale         bool
	Pairing       *models.PairingSession
}

// Status returns the current state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.decisions[e.activity]
	if !ok {
		d = models.Decision{Allowed: true, RemainingSeconds: models.Unlimited}
	}
	return Status{
		Paired:        e.paired,
		Enabled:       e.enabled,
		Child:         e.identity.Current(),
		NeedSelection: e.needSelectionLocked(),
		Activity:      e.activity,
		Decision:      d,
		Severity:      policy.SeverityFor(d.RemainingSeconds),
		Blocked:       e.blocked,
		Stale:         e.stale,
		Pairing:       e.pairing.Current(),
	}
}

func (e *Engine) needSelectionLocked() bool {
	return e.paired && e.identity.Current() == nil && len(e.identity.Roster()) > 0
}

// OnNavigationCommitted records a top-level navigation and triggers a check
// in the background. It never blocks on the network.
func (e *Engine) OnNavigationCommitted(ctx context.Context, rawURL string) {
	now := e.now()
	a := activity.Classify(rawURL)

	e.mu.Lock()
	if !e.paired {
		e.mu.Unlock()
		return
	}
	e.resumeLocked(ctx, now)
	if err := e.identity.Touch(ctx, now); err != nil {
		e.log.Error(ctx, "identity touch failed", "error", err)
	}
	if e.activity != a {
		e.activity = a
		e.warn.Reset()
	}
	e.mu.Unlock()

	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		if err := e.Refresh(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, common.ErrUnpaired) {
			e.log.Debug(ctx, "navigation check failed", "error", err)
		}
	}()
}

// ShouldBlockNavigation answers from cached state only. A selection that
// went idle is dropped first.
func (e *Engine) ShouldBlockNavigation(rawURL string) bool {
	a := activity.Classify(rawURL)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled || !e.paired {
		return false
	}
	e.resumeLocked(context.Background(), e.now())
	child := e.identity.Current()
	if child == nil {
		// The selection gate is up.
		return len(e.identity.Roster()) > 0
	}
	if child.IsParent() {
		return false
	}
	if d, ok := e.decisions[a]; ok {
		return !d.Allowed
	}
	return false
}

// Refresh runs one check for the current child and updates the decisions,
// block state and warnings. A gap longer than the idle threshold since the
// last refresh or navigation re-arms the selection gate first. Transient
// failures are absorbed; a revocation returns common.ErrUnpaired.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if !e.enabled || !e.paired {
		e.mu.Unlock()
		return nil
	}
	e.resumeLocked(ctx, e.now())
	child := e.identity.Current()
	if child != nil {
		if err := e.identity.Touch(ctx, e.now()); err != nil {
			e.log.Error(ctx, "identity touch failed", "error", err)
		}
	}
	if child == nil || child.IsParent() {
		e.setBlockedLocked(false)
		e.mu.Unlock()
		return nil
	}
	childID, a := child.ID, e.activity
	e.mu.Unlock()

	v, err := e.checks.Check(ctx, childID, models.AllActivities, e.opts.Timezone)
	if err != nil {
		return err
	}

	now := e.now()
	current, err := e.checks.Account(ctx, childID, a, v, now)
	if err != nil {
		e.log.Error(ctx, "offline accounting failed", "child_id", childID, "error", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if c := e.identity.Current(); c == nil || c.ID != childID || !e.paired || !e.enabled {
		return nil
	}

	decisions := make(map[models.ActivityID]models.Decision, len(models.AllActivities))
	for _, act := range models.AllActivities {
		decisions[act] = v.Decide(act, now)
	}
	decisions[a] = current
	e.decisions = decisions
	e.stale = v.Stale

	if e.activity != a {
		return nil
	}
	e.setBlockedLocked(!current.Allowed)
	if sev, changed := e.warn.ObserveDecision(current); changed {
		e.bus.Publish(events.Warning{Severity: sev, RemainingSeconds: warningSeconds(sev, current)})
	}
	return nil
}

func warningSeconds(sev policy.Severity, d models.Decision) int64 {
	if sev == policy.SeverityBlocked {
		return 0
	}
	return d.RemainingSeconds
}

// Run checks on the configured interval until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.CheckInterval)
	defer ticker.Stop()

	if err := e.Refresh(ctx); err != nil && !errors.Is(err, common.ErrUnpaired) {
		e.log.Debug(ctx, "check failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Refresh(ctx); err != nil && !errors.Is(err, common.ErrUnpaired) {
				e.log.Debug(ctx, "check failed", "error", err)
			}
		}
	}
}

// RequestMoreTime asks the guardian for more time on the current activity.
func (e *Engine) RequestMoreTime(ctx context.Context, d time.Duration, reason string) (string, error) {
	e.mu.Lock()
	child := e.identity.Current()
	a := e.activity
	paired := e.paired
	e.mu.Unlock()

	if !paired {
		return "", common.ErrNotPaired
	}
	if child == nil || child.IsParent() {
		return "", common.ErrNotFound
	}
	return e.checks.RequestMoreTime(ctx, child.ID, a, int64(d/time.Second), reason)
}
