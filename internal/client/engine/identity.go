package engine

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/events"
	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/common"
)

// Roster returns the paired roster.
func (e *Engine) Roster() models.Roster {
	return e.identity.Roster()
}

// CurrentChild returns the selected identity or nil.
func (e *Engine) CurrentChild() *models.Child {
	return e.identity.Current()
}

// SelectChild validates the PIN and switches identity. A check for the new
// child runs in the background.
func (e *Engine) SelectChild(ctx context.Context, childID int64, pin string) (*models.Child, error) {
	e.mu.Lock()
	if !e.paired {
		e.mu.Unlock()
		return nil, common.ErrNotPaired
	}
	child, err := e.identity.SelectChild(ctx, childID, pin)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.resetDecisionsLocked()
	now := e.now()
	e.idleChildLocked(ctx, now)
	if err := e.identity.Touch(ctx, now); err != nil {
		e.log.Error(ctx, "identity touch failed", "error", err)
	}
	e.bus.Publish(events.ChildChanged{Child: child})
	e.mu.Unlock()

	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		_ = e.Refresh(context.WithoutCancel(ctx))
	}()
	return child, nil
}

// ClearCurrentChild drops the selection and raises the selection gate.
func (e *Engine) ClearCurrentChild(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.identity.ClearCurrentChild(ctx); err != nil {
		return err
	}
	e.resetDecisionsLocked()
	e.bus.Publish(events.ChildChanged{Child: nil})
	if e.needSelectionLocked() {
		e.bus.Publish(events.NeedChildSelection{})
	}
	return nil
}

// Resume re-arms the selection gate on a shared device when nothing has
// happened for longer than the idle threshold. Hosts call it on returning
// to the foreground; checks and navigation call it too. It reports whether
// the selection was cleared.
func (e *Engine) Resume(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resumeLocked(ctx, e.now())
}

func (e *Engine) resumeLocked(ctx context.Context, now time.Time) bool {
	if !e.paired {
		return false
	}
	cleared, err := e.identity.Resume(ctx, now)
	if err != nil {
		e.log.Error(ctx, "identity resume failed", "error", err)
	}
	if cleared {
		e.resetDecisionsLocked()
		e.bus.Publish(events.ChildChanged{Child: nil})
		e.bus.Publish(events.NeedChildSelection{})
	}
	return cleared
}

// NeedsChildSelection reports whether the selection gate should be shown.
func (e *Engine) NeedsChildSelection() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.needSelectionLocked()
}
