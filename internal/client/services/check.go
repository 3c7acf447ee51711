package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/client"
	"github.com/dmitrijs2005/gophguard/internal/client/credstore"
	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/client/policy"
	"github.com/dmitrijs2005/gophguard/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophguard/internal/client/storage"
	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/dbx"
	"github.com/dmitrijs2005/gophguard/internal/logging"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"
)

const (
	defaultBackoffBase = 5 * time.Second
	defaultBackoffMax  = 5 * time.Minute
)

// Verdict is what a check produced: a fresh server result, or the last known
// one plus the offline snapshot when the guardian could not be reached.
type Verdict struct {
	Result   *models.CheckResult
	Snapshot *models.OfflineSnapshot
	Stale    bool
}

// Decide returns the decision for activity a at now.
func (v *Verdict) Decide(a models.ActivityID, now time.Time) models.Decision {
	if !v.Stale && v.Result.Fresh(now) {
		return policy.Fresh(v.Result, a, now)
	}
	return policy.Evaluate(v.Result, v.Snapshot, a, now)
}

// CheckService produces the freshest possible verdict per child.
//
// Contract:
//   - Check: a non-expired cached result is returned without a network call;
//     concurrent callers for one child share a single request; transient
//     failures are answered with a stale verdict, never an error; a 401
//     revokes the pairing and returns common.ErrUnpaired.
//   - Account: charge offline usage against the snapshot and ledger.
//   - Idle: re-anchor a child's snapshot without charging, for time the
//     child was not being enforced.
//   - RequestMoreTime: ask the guardian for more time.
type CheckService interface {
	Check(ctx context.Context, childID int64, activities []models.ActivityID, tz string) (*Verdict, error)
	Account(ctx context.Context, childID int64, a models.ActivityID, v *Verdict, now time.Time) (models.Decision, error)
	Idle(ctx context.Context, childID int64, now time.Time) error
	RequestMoreTime(ctx context.Context, childID int64, a models.ActivityID, seconds int64, reason string) (string, error)
}

type checkService struct {
	client  client.Client
	store   credstore.Store
	db      *sql.DB
	repos   *storage.Repositories
	revoker Revoker
	log     logging.Logger
	now     func() time.Time

	backoffBase time.Duration
	backoffMax  time.Duration

	group  singleflight.Group
	acctMu sync.Mutex

	mu           sync.Mutex
	backoff      retry.Backoff
	backoffUntil time.Time
}

type CheckOption func(*checkService)

func WithCheckLogger(l logging.Logger) CheckOption {
	return func(s *checkService) { s.log = l }
}

func WithCheckClock(now func() time.Time) CheckOption {
	return func(s *checkService) { s.now = now }
}

// WithServerBackoff sets the first and largest pause after a server error.
func WithServerBackoff(base, maxWait time.Duration) CheckOption {
	return func(s *checkService) {
		s.backoffBase = base
		s.backoffMax = maxWait
	}
}

// NewCheckService constructs a CheckService. revoker is invoked
// synchronously on a 401.
func NewCheckService(c client.Client, store credstore.Store, db *sql.DB, revoker Revoker, opts ...CheckOption) CheckService {
	s := &checkService{
		client:      c,
		store:       store,
		db:          db,
		repos:       storage.NewRepositories(db),
		revoker:     revoker,
		log:         logging.Nop(),
		now:         time.Now,
		backoffBase: defaultBackoffBase,
		backoffMax:  defaultBackoffMax,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *checkService) Check(ctx context.Context, childID int64, activities []models.ActivityID, tz string) (*Verdict, error) {
	cached, err := s.repos.Checks.Get(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("read cached check: %w", err)
	}
	if cached.Fresh(s.now()) {
		return &Verdict{Result: cached}, nil
	}

	if s.inBackoff() {
		s.log.Debug(ctx, "guardian in backoff, serving stale", "child_id", childID)
		return s.stale(ctx, childID, cached)
	}

	ch := s.group.DoChan(strconv.FormatInt(childID, 10), func() (any, error) {
		// The shared call outlives any single caller.
		return s.fetch(context.WithoutCancel(ctx), childID, activities, tz)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	switch {
	case res.Err == nil:
		return res.Val.(*Verdict), nil
	case errors.Is(res.Err, common.ErrUnpaired), errors.Is(res.Err, common.ErrNotPaired):
		return nil, res.Err
	case common.IsTransient(res.Err):
		return s.stale(ctx, childID, cached)
	}
	return nil, res.Err
}

func (s *checkService) fetch(ctx context.Context, childID int64, activities []models.ActivityID, tz string) (*Verdict, error) {
	creds, err := credstore.LoadCredentials(ctx, s.store)
	if err != nil {
		return nil, err
	}

	pending, err := s.repos.Usage.Pending(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("read usage ledger: %w", err)
	}
	prev, err := s.repos.Snapshots.Get(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("read offline snapshot: %w", err)
	}
	var deficit int64
	if prev != nil {
		deficit = prev.Deficit
	}

	out, err := s.client.Check(ctx, client.CheckRequest{
		Credentials: *creds,
		ChildID:     childID,
		Activities:  activities,
		Timezone:    tz,
		Log:         pending,
		Deficit:     deficit,
	})
	if err != nil {
		return nil, s.onFailure(ctx, "check", err)
	}
	s.clearBackoff()

	snap := policy.Seed(&out.Result, out.Windows, out.HomeTimezone, prev, tz)
	s.acctMu.Lock()
	defer s.acctMu.Unlock()
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		// Unpair may have run while the request was in flight.
		if err := samePairing(ctx, s.store, creds); err != nil {
			return err
		}
		repos := storage.NewRepositories(tx)
		if err := repos.Usage.Subtract(ctx, childID, pending); err != nil {
			return err
		}
		if err := repos.Checks.Save(ctx, &out.Result); err != nil {
			return err
		}
		if err := repos.Snapshots.Save(ctx, snap); err != nil {
			return err
		}
		if err := metadata.SetJSON(ctx, repos.Metadata, metadata.KeyLastCheckAt, out.Result.FetchedAt); err != nil {
			return err
		}
		return metadata.SetJSON(ctx, repos.Metadata, metadata.KeyHomeTimezone, snap.HomeTimezone)
	})
	if errors.Is(err, common.ErrNotPaired) {
		s.log.Info(ctx, "pairing ended during check, result dropped", "child_id", childID)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("persist check: %w", err)
	}

	s.log.Debug(ctx, "check ok", "child_id", childID, "allowed", out.Result.Allowed,
		"expires_at", out.Result.ExpiresAt, "synced_entries", len(pending))
	return &Verdict{Result: &out.Result, Snapshot: snap}, nil
}

// onFailure classifies a guardian error. A 401 revokes synchronously.
func (s *checkService) onFailure(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		s.log.Warn(ctx, "guardian revoked this device", "op", op)
		if s.revoker != nil {
			if rerr := s.revoker.Revoke(ctx); rerr != nil {
				s.log.Error(ctx, "revocation cleanup failed", "error", rerr)
			}
		}
		return fmt.Errorf("%s: %w", op, common.ErrUnpaired)
	case errors.Is(err, common.ErrServer):
		s.armBackoff(ctx)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *checkService) stale(ctx context.Context, childID int64, cached *models.CheckResult) (*Verdict, error) {
	snap, err := s.repos.Snapshots.Get(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("read offline snapshot: %w", err)
	}
	return &Verdict{Result: cached, Snapshot: snap, Stale: true}, nil
}

func (s *checkService) Account(ctx context.Context, childID int64, a models.ActivityID, v *Verdict, now time.Time) (models.Decision, error) {
	if !v.Stale {
		return v.Decide(a, now), nil
	}

	// Charging reads and writes the snapshot; concurrent refreshes must not
	// charge the same interval twice.
	s.acctMu.Lock()
	defer s.acctMu.Unlock()

	snap, err := s.repos.Snapshots.Get(ctx, childID)
	if err != nil {
		return v.Decide(a, now), fmt.Errorf("read offline snapshot: %w", err)
	}
	v.Snapshot = snap
	d := v.Decide(a, now)
	if snap == nil {
		return d, nil
	}

	var entry models.UsageEntry
	if d.Allowed {
		entry = policy.Tick(v.Snapshot, a, now)
		d = v.Decide(a, now)
	} else {
		policy.Idle(v.Snapshot, now)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repos := storage.NewRepositories(tx)
		if entry.Seconds > 0 {
			if err := repos.Usage.Add(ctx, childID, entry); err != nil {
				return err
			}
		}
		return repos.Snapshots.Save(ctx, v.Snapshot)
	})
	if err != nil {
		return d, fmt.Errorf("persist offline usage: %w", err)
	}
	return d, nil
}

func (s *checkService) Idle(ctx context.Context, childID int64, now time.Time) error {
	s.acctMu.Lock()
	defer s.acctMu.Unlock()

	snap, err := s.repos.Snapshots.Get(ctx, childID)
	if err != nil {
		return fmt.Errorf("read offline snapshot: %w", err)
	}
	if snap == nil || !now.After(snap.UpdatedAt) {
		return nil
	}
	policy.Idle(snap, now)
	if err := s.repos.Snapshots.Save(ctx, snap); err != nil {
		return fmt.Errorf("persist offline snapshot: %w", err)
	}
	return nil
}

// samePairing fails with common.ErrNotPaired unless the stored credentials
// are still the ones in want.
func samePairing(ctx context.Context, store credstore.Store, want *models.Credentials) error {
	got, err := credstore.LoadCredentials(ctx, store)
	if err != nil {
		return err
	}
	if *got != *want {
		return common.ErrNotPaired
	}
	return nil
}

func (s *checkService) RequestMoreTime(ctx context.Context, childID int64, a models.ActivityID, seconds int64, reason string) (string, error) {
	if seconds <= 0 {
		return "", fmt.Errorf("requested time must be positive")
	}
	creds, err := credstore.LoadCredentials(ctx, s.store)
	if err != nil {
		return "", err
	}

	id, err := s.client.CreateRequest(ctx, client.TimeRequest{
		Credentials: *creds,
		ChildID:     childID,
		Activity:    a,
		Seconds:     seconds,
		Reason:      reason,
	})
	if err != nil {
		return "", s.onFailure(ctx, "create request", err)
	}
	s.log.Info(ctx, "time request sent", "child_id", childID, "activity", a, "seconds", seconds, "request_id", id)
	return id, nil
}

func (s *checkService) inBackoff() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Before(s.backoffUntil)
}

func (s *checkService) armBackoff(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backoff == nil {
		s.backoff = retry.WithCappedDuration(s.backoffMax, retry.NewExponential(s.backoffBase))
	}
	wait, _ := s.backoff.Next()
	s.backoffUntil = s.now().Add(wait)
	s.log.Info(ctx, "guardian server error, backing off", "wait", wait)
}

func (s *checkService) clearBackoff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backoff = nil
	s.backoffUntil = time.Time{}
}
