package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/client"
	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/logging"
)

// PairingSink receives a successful pairing. It must store credentials and
// roster together or not at all.
type PairingSink interface {
	ApplyPairing(ctx context.Context, outcome models.PairingOutcome) error
}

// PairingService drives the pairing session machine.
//
// Contract:
//   - Initiate: open a session with the guardian; any active one is cancelled.
//   - Poll: ask for the session's status once and apply the transition.
//   - Cancel: best-effort and idempotent.
//   - StartPolling: poll on an interval until the session is terminal.
//   - Current: a copy of the active or last session.
//
// A session that is still pending or scanned at its ExpiresAt is expired
// locally, with or without polling.
type PairingService interface {
	Initiate(ctx context.Context, t models.Transport, deviceName, deviceToken string) (*models.PairingSession, error)
	Poll(ctx context.Context, sessionID string) (*models.PairingSession, error)
	Cancel(ctx context.Context, sessionID string) error
	StartPolling(ctx context.Context, sessionID string, interval time.Duration, onUpdate func(models.PairingSession, error)) error
	Current() *models.PairingSession
}

// PairingObserver is told about every status change.
type PairingObserver func(models.PairingSession)

type pairingService struct {
	client   client.Client
	sink     PairingSink
	log      logging.Logger
	timeout  time.Duration
	now      func() time.Time
	observer PairingObserver

	mu       sync.Mutex
	session  *models.PairingSession
	expiry   *time.Timer
	stopPoll context.CancelFunc
}

type PairingOption func(*pairingService)

// WithPairingTimeout caps how long a session may stay open on this side.
func WithPairingTimeout(d time.Duration) PairingOption {
	return func(s *pairingService) { s.timeout = d }
}

func WithPairingObserver(o PairingObserver) PairingOption {
	return func(s *pairingService) { s.observer = o }
}

// WithPairingClock sets the clock session expiry is measured on. It must be
// the one the client stamps sessions with.
func WithPairingClock(now func() time.Time) PairingOption {
	return func(s *pairingService) { s.now = now }
}

func WithPairingLogger(l logging.Logger) PairingOption {
	return func(s *pairingService) { s.log = l }
}

// NewPairingService constructs a PairingService.
func NewPairingService(c client.Client, sink PairingSink, opts ...PairingOption) PairingService {
	s := &pairingService{
		client:  c,
		sink:    sink,
		log:     logging.Nop(),
		timeout: common.DefaultPairingTimeout,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *pairingService) Current() *models.PairingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	c := *s.session
	return &c
}

func (s *pairingService) Initiate(ctx context.Context, t models.Transport, deviceName, deviceToken string) (*models.PairingSession, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown transport %q", t)
	}

	s.mu.Lock()
	prev := s.cancelLocked()
	s.mu.Unlock()
	s.notify(prev)

	sess, err := s.client.InitPairing(ctx, t, deviceName, deviceToken)
	if err != nil {
		s.log.Warn(ctx, "pairing init failed", "transport", t, "error", err)
		return nil, fmt.Errorf("pairing init: %w", err)
	}

	now := s.now()
	if limit := now.Add(s.timeout); sess.ExpiresAt.IsZero() || sess.ExpiresAt.After(limit) {
		sess.ExpiresAt = limit
	}

	s.mu.Lock()
	replaced := s.cancelLocked()
	s.session = sess
	id := sess.ID
	s.expiry = time.AfterFunc(sess.ExpiresAt.Sub(now), func() { s.expire(id) })
	out := *sess
	s.mu.Unlock()

	s.notify(replaced)
	s.notify(&out)
	s.log.Info(ctx, "pairing session opened", "session_id", id, "transport", t, "expires_at", out.ExpiresAt)
	return &out, nil
}

func (s *pairingService) Poll(ctx context.Context, sessionID string) (*models.PairingSession, error) {
	s.mu.Lock()
	sess, err := s.activeLocked(sessionID)
	if err != nil || sess.Status.Terminal() || sess.Status == models.PairingCompleting {
		out := copyOf(sess)
		s.mu.Unlock()
		return out, err
	}
	transport := sess.Transport
	s.mu.Unlock()

	up, err := s.client.PairingStatus(ctx, transport, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			out := s.finish(sessionID, models.PairingFailed)
			return out, fmt.Errorf("%w: %w", common.ErrPairingFailed, err)
		}
		s.log.Debug(ctx, "pairing poll failed", "session_id", sessionID, "error", err)
		return s.Current(), err
	}

	switch up.Status {
	case models.PairingPending:
		return s.Current(), nil
	case models.PairingScanned:
		return s.transition(sessionID, models.PairingScanned), nil
	case models.PairingExpired:
		return s.finish(sessionID, models.PairingExpired), common.ErrSessionExpired
	case models.PairingCancelled:
		return s.finish(sessionID, models.PairingCancelled), nil
	case models.PairingFailed:
		return s.finish(sessionID, models.PairingFailed), common.ErrPairingFailed
	}

	return s.complete(ctx, sessionID, up.Outcome)
}

// complete hands the outcome to the sink exactly once per session.
func (s *pairingService) complete(ctx context.Context, sessionID string, outcome *models.PairingOutcome) (*models.PairingSession, error) {
	s.mu.Lock()
	sess, err := s.activeLocked(sessionID)
	if err != nil || sess.Status.Terminal() || sess.Status == models.PairingCompleting {
		out := copyOf(sess)
		s.mu.Unlock()
		return out, err
	}
	sess.Status = models.PairingCompleting
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
	out := *sess
	s.mu.Unlock()
	s.notify(&out)

	// Applying must not be cut short by cancellation of the poll loop.
	if err := s.sink.ApplyPairing(context.WithoutCancel(ctx), *outcome); err != nil {
		s.log.Error(ctx, "pairing completion could not be applied", "session_id", sessionID, "error", err)
		return s.finish(sessionID, models.PairingFailed), fmt.Errorf("%w: %w", common.ErrPairingFailed, err)
	}

	s.log.Info(ctx, "device paired", "session_id", sessionID, "children", len(outcome.Roster))
	return s.finish(sessionID, models.PairingCompleted), nil
}

func (s *pairingService) Cancel(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	var out *models.PairingSession
	if s.session != nil && s.session.ID == sessionID && s.session.Status != models.PairingCompleting {
		out = s.cancelLocked()
	}
	s.mu.Unlock()

	if out != nil {
		s.log.Info(ctx, "pairing cancelled", "session_id", sessionID)
		s.notify(out)
	}
	return nil
}

func (s *pairingService) StartPolling(ctx context.Context, sessionID string, interval time.Duration, onUpdate func(models.PairingSession, error)) error {
	if interval <= 0 {
		interval = common.DefaultPairingInterval
	}

	s.mu.Lock()
	sess, err := s.activeLocked(sessionID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if sess.Status.Terminal() {
		s.mu.Unlock()
		return common.ErrNoActiveSession
	}
	if s.stopPoll != nil {
		s.stopPoll()
	}
	pctx, cancel := context.WithCancel(ctx)
	s.stopPoll = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-pctx.Done():
				return
			case <-ticker.C:
			}

			sess, err := s.Poll(pctx, sessionID)
			if errors.Is(err, context.Canceled) {
				return
			}
			if onUpdate != nil && sess != nil {
				onUpdate(*sess, err)
			}
			if sess == nil || sess.Status.Terminal() {
				return
			}
		}
	}()
	return nil
}

func (s *pairingService) expire(sessionID string) {
	s.mu.Lock()
	if s.session == nil || s.session.ID != sessionID {
		s.mu.Unlock()
		return
	}
	st := s.session.Status
	if st != models.PairingPending && st != models.PairingScanned {
		s.mu.Unlock()
		return
	}
	s.session.Status = models.PairingExpired
	s.stopTimersLocked()
	out := *s.session
	s.mu.Unlock()

	s.log.Info(context.Background(), "pairing session expired", "session_id", sessionID)
	s.notify(&out)
}

// transition moves a live session forward; it never regresses and never
// touches terminal sessions.
func (s *pairingService) transition(sessionID string, to models.PairingStatus) *models.PairingSession {
	s.mu.Lock()
	sess, err := s.activeLocked(sessionID)
	if err != nil || sess.Status != models.PairingPending {
		out := copyOf(sess)
		s.mu.Unlock()
		return out
	}
	sess.Status = to
	out := *sess
	s.mu.Unlock()

	s.notify(&out)
	return &out
}

func (s *pairingService) finish(sessionID string, to models.PairingStatus) *models.PairingSession {
	s.mu.Lock()
	sess, err := s.activeLocked(sessionID)
	if err != nil || sess.Status.Terminal() {
		out := copyOf(sess)
		s.mu.Unlock()
		return out
	}
	sess.Status = to
	s.stopTimersLocked()
	out := *sess
	s.mu.Unlock()

	s.notify(&out)
	return &out
}

func (s *pairingService) activeLocked(sessionID string) (*models.PairingSession, error) {
	if s.session == nil || s.session.ID != sessionID {
		return nil, common.ErrNoActiveSession
	}
	if s.session.Status == models.PairingExpired {
		return s.session, common.ErrSessionExpired
	}
	return s.session, nil
}

// cancelLocked cancels the active session, if any, and returns its final
// state for notification.
func (s *pairingService) cancelLocked() *models.PairingSession {
	s.stopTimersLocked()
	if s.session == nil || s.session.Status.Terminal() || s.session.Status == models.PairingCompleting {
		return nil
	}
	s.session.Status = models.PairingCancelled
	out := *s.session
	return &out
}

func (s *pairingService) stopTimersLocked() {
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
	if s.stopPoll != nil {
		s.stopPoll()
		s.stopPoll = nil
	}
}

func (s *pairingService) notify(sess *models.PairingSession) {
	if sess != nil && s.observer != nil {
		s.observer(*sess)
	}
}

func copyOf(s *models.PairingSession) *models.PairingSession {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
