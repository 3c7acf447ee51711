package engine

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophguard/internal/client/credstore"
	"github.com/dmitrijs2005/gophguard/internal/client/events"
	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophguard/internal/client/services"
	"github.com/dmitrijs2005/gophguard/internal/client/storage"
	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/dbx"
)

// StartPairing opens a pairing session and polls it in the background until
// it ends. onUpdate, if set, sees every poll result.
func (e *Engine) StartPairing(ctx context.Context, t models.Transport, onUpdate func(models.PairingSession, error)) (*models.PairingSession, error) {
	if e.IsPaired() {
		return nil, common.ErrAlreadyPaired
	}

	sess, err := e.pairing.Initiate(ctx, t, e.opts.DeviceName, e.DeviceToken())
	if err != nil {
		return nil, err
	}
	// The poll loop belongs to the session, not to the caller's request.
	if err := e.pairing.StartPolling(context.WithoutCancel(ctx), sess.ID, e.opts.PairingInterval, onUpdate); err != nil {
		return nil, err
	}
	return sess, nil
}

// PollPairing polls the session once.
func (e *Engine) PollPairing(ctx context.Context, sessionID string) (*models.PairingSession, error) {
	return e.pairing.Poll(ctx, sessionID)
}

// CancelPairing cancels the session; unknown or finished sessions are fine.
func (e *Engine) CancelPairing(ctx context.Context, sessionID string) error {
	return e.pairing.Cancel(ctx, sessionID)
}

// PairingSession returns the current or last pairing session.
func (e *Engine) PairingSession() *models.PairingSession {
	return e.pairing.Current()
}

// ApplyPairing stores a completed pairing. Credentials are written and read
// back first; the roster and a clean local state follow in one transaction.
// If that transaction fails the credentials are removed again.
func (e *Engine) ApplyPairing(ctx context.Context, o models.PairingOutcome) error {
	if len(o.Roster) == 0 {
		return fmt.Errorf("empty roster: %w", common.ErrMalformedResponse)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := credstore.SaveCredentials(ctx, e.store, o.Credentials); err != nil {
		_ = credstore.DeleteCredentials(ctx, e.store)
		return err
	}

	err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repos := storage.NewRepositories(tx)
		if err := repos.Checks.Clear(ctx); err != nil {
			return err
		}
		if err := repos.Snapshots.Clear(ctx); err != nil {
			return err
		}
		if err := repos.Usage.Clear(ctx); err != nil {
			return err
		}
		if err := repos.Metadata.Delete(ctx, metadata.KeyCurrentChild); err != nil {
			return err
		}
		return metadata.SetJSON(ctx, repos.Metadata, metadata.KeyRoster, o.Roster)
	})
	if err != nil {
		if derr := credstore.DeleteCredentials(ctx, e.store); derr != nil {
			e.log.Error(ctx, "could not roll back credentials", "error", derr)
		}
		return fmt.Errorf("store roster: %w", err)
	}

	e.paired = true
	e.resetDecisionsLocked()

	need, err := e.identity.Load(ctx, e.now())
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	e.log.Info(ctx, "pairing applied", "children", len(o.Roster.Children()), "need_selection", need)

	if need {
		e.bus.Publish(events.NeedChildSelection{})
	} else {
		e.bus.Publish(events.ChildChanged{Child: e.identity.Current()})
	}
	return nil
}

// Unpair ends pairing on request of the host.
func (e *Engine) Unpair(ctx context.Context) error {
	if s := e.pairing.Current(); s != nil {
		_ = e.pairing.Cancel(ctx, s.ID)
	}
	return e.teardown(ctx, false)
}

// Revoke ends pairing after the guardian rejected the credentials. It is
// called synchronously from the check path.
func (e *Engine) Revoke(ctx context.Context) error {
	return e.teardown(ctx, true)
}

func (e *Engine) teardown(ctx context.Context, revoked bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := services.ClearPairing(ctx, e.db, e.store)

	wasPaired := e.paired
	e.paired = false
	e.identity.Reset()
	e.resetDecisionsLocked()

	if wasPaired {
		e.log.Warn(ctx, "device unpaired", "revoked", revoked)
		e.bus.Publish(events.ChildChanged{Child: nil})
		e.bus.Publish(events.Unpaired{Revoked: revoked})
	}
	return err
}
