package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/client"
	"github.com/dmitrijs2005/gophguard/internal/client/credstore"
	"github.com/dmitrijs2005/gophguard/internal/client/events"
	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/client/policy"
	"github.com/dmitrijs2005/gophguard/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophguard/internal/client/services"
	"github.com/dmitrijs2005/gophguard/internal/client/storage"
	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/logging"
	"github.com/google/uuid"
)

// Options configures an Engine. Client, Store and DB are required.
type Options struct {
	Client client.Client
	Store  credstore.Store
	DB     *sql.DB
	Logger logging.Logger

	DeviceName      string
	Timezone        string
	CheckInterval   time.Duration
	PairingTimeout  time.Duration
	PairingInterval time.Duration
	IdleThreshold   time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Engine is the client-resident enforcement engine.
type Engine struct {
	opts  Options
	log   logging.Logger
	bus   *events.Bus
	store credstore.Store
	db    *sql.DB
	repos *storage.Repositories
	now   func() time.Time

	pairing  services.PairingService
	checks   services.CheckService
	identity services.IdentityService

	mu          sync.Mutex
	paired      bool
	enabled     bool
	deviceToken string
	activity    models.ActivityID
	decisions   map[models.ActivityID]models.Decision
	blocked     bool
	stale       bool
	warn        policy.Scheduler

	bg sync.WaitGroup
}

// New builds an engine and restores persisted state.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Client == nil || opts.Store == nil || opts.DB == nil {
		return nil, errors.New("engine: client, store and db are required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timezone == "" {
		opts.Timezone = localTimezone()
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = common.DefaultCheckInterval
	}
	if opts.PairingTimeout <= 0 {
		opts.PairingTimeout = common.DefaultPairingTimeout
	}
	if opts.PairingInterval <= 0 {
		opts.PairingInterval = common.DefaultPairingInterval
	}

	e := &Engine{
		opts:      opts,
		log:       opts.Logger,
		bus:       events.NewBus(),
		store:     opts.Store,
		db:        opts.DB,
		repos:     storage.NewRepositories(opts.DB),
		now:       opts.Now,
		activity:  models.ActivityInternet,
		decisions: make(map[models.ActivityID]models.Decision),
		enabled:   true,
	}

	e.identity = services.NewIdentityService(e.repos.Metadata, opts.IdleThreshold, e.log.With("component", "identity"))
	e.checks = services.NewCheckService(opts.Client, opts.Store, opts.DB, e,
		services.WithCheckLogger(e.log.With("component", "check")),
		services.WithCheckClock(opts.Now))
	e.pairing = services.NewPairingService(opts.Client, e,
		services.WithPairingTimeout(opts.PairingTimeout),
		services.WithPairingClock(opts.Now),
		services.WithPairingLogger(e.log.With("component", "pairing")))

	if err := e.restore(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) restore(ctx context.Context) error {
	var enabled bool
	found, err := metadata.GetJSON(ctx, e.repos.Metadata, metadata.KeyEnabled, &enabled)
	if err != nil {
		return fmt.Errorf("restore enabled flag: %w", err)
	}
	if found {
		e.enabled = enabled
	}

	token, err := e.repos.Metadata.Get(ctx, metadata.KeyDeviceToken)
	if err != nil {
		return fmt.Errorf("restore device token: %w", err)
	}
	if token == nil {
		token = []byte(uuid.NewString())
		if err := e.repos.Metadata.Set(ctx, metadata.KeyDeviceToken, token); err != nil {
			return fmt.Errorf("store device token: %w", err)
		}
	}
	e.deviceToken = string(token)

	_, err = credstore.LoadCredentials(ctx, e.store)
	switch {
	case err == nil:
		e.paired = true
	case errors.Is(err, common.ErrNotPaired):
		e.paired = false
	default:
		return fmt.Errorf("read credentials: %w", err)
	}

	if !e.paired {
		return nil
	}
	need, err := e.identity.Load(ctx, e.now())
	if err != nil {
		return fmt.Errorf("restore identity: %w", err)
	}
	e.log.Info(ctx, "engine restored", "paired", e.paired, "enabled", e.enabled, "need_selection", need)
	// Time the process was not running is not charged.
	e.idleChildLocked(ctx, e.now())
	return nil
}

// localTimezone returns an IANA name for the host zone. time.Local only
// reports "Local", so TZ is consulted and UTC is the fallback.
func localTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}
	if name := time.Local.String(); name != "Local" {
		return name
	}
	return "UTC"
}

// Subscribe returns an event stream and its cancel function. While the
// selection gate is up the stream starts with NeedChildSelection.
func (e *Engine) Subscribe() (<-chan events.Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.needSelectionLocked() {
		return e.bus.Subscribe(events.NeedChildSelection{})
	}
	return e.bus.Subscribe()
}

// IsPaired reports whether credentials are present.
func (e *Engine) IsPaired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paired
}

// Enabled reports whether enforcement is on.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetEnabled turns enforcement on or off and persists the choice. A
// disabled engine never blocks.
func (e *Engine) SetEnabled(ctx context.Context, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := metadata.SetJSON(ctx, e.repos.Metadata, metadata.KeyEnabled, on); err != nil {
		return err
	}
	was := e.enabled
	e.enabled = on
	e.log.Info(ctx, "enforcement toggled", "enabled", on)
	if !on {
		e.setBlockedLocked(false)
		e.warn.Reset()
		return nil
	}
	if !was && e.paired {
		now := e.now()
		e.idleChildLocked(ctx, now)
		if err := e.identity.Touch(ctx, now); err != nil {
			e.log.Error(ctx, "identity touch failed", "error", err)
		}
	}
	return nil
}

// DeviceToken is the stable identifier sent on pairing.
func (e *Engine) DeviceToken() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deviceToken
}

// Close waits for background checks and closes every subscription.
func (e *Engine) Close() {
	e.bg.Wait()
	e.bus.Close()
}

func (e *Engine) setBlockedLocked(b bool) {
	if e.blocked == b {
		return
	}
	e.blocked = b
	e.bus.Publish(events.BlockedChanged{Blocked: b})
}

// idleChildLocked re-anchors the current child's offline snapshot so the
// time before now is not charged.
func (e *Engine) idleChildLocked(ctx context.Context, now time.Time) {
	c := e.identity.Current()
	if c == nil || c.IsParent() {
		return
	}
	if err := e.checks.Idle(ctx, c.ID, now); err != nil {
		e.log.Error(ctx, "offline snapshot re-anchor failed", "child_id", c.ID, "error", err)
	}
}

// resetDecisionsLocked forgets everything derived from the previous child.
func (e *Engine) resetDecisionsLocked() {
	e.decisions = make(map[models.ActivityID]models.Decision)
	e.stale = false
	e.warn.Reset()
	e.setBlockedLocked(false)
}
