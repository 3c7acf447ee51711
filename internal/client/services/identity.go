package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/cryptox"
	"github.com/dmitrijs2005/gophguard/internal/logging"
)

// IdentityService tracks who is using the device.
//
// Contract:
//   - Load: read the roster and the last recorded activity and decide the
//     cold-start selection. A shared device (more than one child) always
//     starts unselected; a single child is selected automatically.
//   - SelectChild: select a roster entry after PIN validation. A child with
//     no PIN configured is selected unconditionally.
//   - ClearCurrentChild: drop the selection.
//   - Resume: on a shared device, drop the selection after the idle
//     threshold has passed since the last activity.
//   - Touch: record activity.
//   - Reset: forget everything in memory after unpairing.
type IdentityService interface {
	Load(ctx context.Context, now time.Time) (needSelection bool, err error)
	Roster() models.Roster
	State() models.IdentityState
	Current() *models.Child
	SelectChild(ctx context.Context, childID int64, pin string) (*models.Child, error)
	ClearCurrentChild(ctx context.Context) error
	Resume(ctx context.Context, now time.Time) (cleared bool, err error)
	Touch(ctx context.Context, now time.Time) error
	Reset()
}

type identityService struct {
	meta metadata.Repository
	idle time.Duration
	log  logging.Logger

	mu     sync.RWMutex
	roster models.Roster
	state  models.IdentityState
}

// NewIdentityService constructs an IdentityService over the metadata store.
func NewIdentityService(meta metadata.Repository, idle time.Duration, log logging.Logger) IdentityService {
	if idle <= 0 {
		idle = common.DefaultIdleThreshold
	}
	if log == nil {
		log = logging.Nop()
	}
	return &identityService{meta: meta, idle: idle, log: log}
}

func (s *identityService) Load(ctx context.Context, now time.Time) (bool, error) {
	var roster models.Roster
	if _, err := metadata.GetJSON(ctx, s.meta, metadata.KeyRoster, &roster); err != nil {
		return false, err
	}
	var last time.Time
	found, err := metadata.GetJSON(ctx, s.meta, metadata.KeyLastActivityAt, &last)
	if err != nil {
		return false, err
	}
	if !found || last.After(now) {
		last = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.roster = roster
	s.state = models.IdentityState{
		IsSharedDevice: len(roster.Children()) > 1,
		LastActivityAt: last,
	}

	if len(roster) == 0 {
		return false, s.persistLocked(ctx)
	}

	kids := roster.Children()
	switch {
	case s.state.IsSharedDevice:
		s.log.Info(ctx, "shared device, waiting for child selection", "children", len(kids))
	case len(kids) == 1:
		id := kids[0].ID
		s.state.CurrentChildID = &id
	default:
		// Only the parent identity is on the roster.
		id := common.ParentID
		s.state.CurrentChildID = &id
	}

	if err := s.persistLocked(ctx); err != nil {
		return false, err
	}
	return s.state.CurrentChildID == nil, nil
}

func (s *identityService) Roster() models.Roster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(models.Roster(nil), s.roster...)
}

func (s *identityService) State() models.IdentityState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.CurrentChildID != nil {
		id := *st.CurrentChildID
		st.CurrentChildID = &id
	}
	return st
}

func (s *identityService) Current() *models.Child {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.CurrentChildID == nil {
		return nil
	}
	c, ok := s.roster.Find(*s.state.CurrentChildID)
	if !ok {
		return nil
	}
	return c
}

func (s *identityService) SelectChild(ctx context.Context, childID int64, pin string) (*models.Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	child, ok := s.roster.Find(childID)
	if !ok {
		return nil, fmt.Errorf("child %d: %w", childID, common.ErrNotFound)
	}

	if child.HasPin() && !cryptox.ValidatePinHash(pin, child.PinHash, child.PinSalt) {
		s.log.Info(ctx, "child selection rejected", "child_id", childID)
		return nil, common.ErrInvalidPin
	}

	id := child.ID
	s.state.CurrentChildID = &id
	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "child selected", "child_id", childID, "parent", child.IsParent())
	return child, nil
}

func (s *identityService) ClearCurrentChild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentChildID = nil
	return s.persistLocked(ctx)
}

func (s *identityService) Resume(ctx context.Context, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsSharedDevice || s.state.CurrentChildID == nil {
		return false, nil
	}
	if s.state.LastActivityAt.IsZero() || now.Sub(s.state.LastActivityAt) <= s.idle {
		return false, nil
	}

	s.log.Info(ctx, "idle threshold passed, clearing selection", "idle_for", now.Sub(s.state.LastActivityAt))
	s.state.CurrentChildID = nil
	return true, s.persistLocked(ctx)
}

func (s *identityService) Touch(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.state.LastActivityAt) {
		s.state.LastActivityAt = now
	}
	return metadata.SetJSON(ctx, s.meta, metadata.KeyLastActivityAt, s.state.LastActivityAt)
}

func (s *identityService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster = nil
	s.state = models.IdentityState{}
}

func (s *identityService) persistLocked(ctx context.Context) error {
	if s.state.CurrentChildID == nil {
		return s.meta.Delete(ctx, metadata.KeyCurrentChild)
	}
	return s.meta.Set(ctx, metadata.KeyCurrentChild, []byte(strconv.FormatInt(*s.state.CurrentChildID, 10)))
}
