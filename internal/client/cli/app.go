package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/client"
	"github.com/dmitrijs2005/gophguard/internal/client/config"
	"github.com/dmitrijs2005/gophguard/internal/client/credstore"
	"github.com/dmitrijs2005/gophguard/internal/client/engine"
	"github.com/dmitrijs2005/gophguard/internal/client/events"
	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/client/storage"
	"github.com/dmitrijs2005/gophguard/internal/filex"
	"github.com/dmitrijs2005/gophguard/internal/logging"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

// Engine is the part of the engine the CLI drives.
type Engine interface {
	IsPaired() bool
	Enabled() bool
	SetEnabled(ctx context.Context, on bool) error
	StartPairing(ctx context.Context, t models.Transport, onUpdate func(models.PairingSession, error)) (*models.PairingSession, error)
	CancelPairing(ctx context.Context, sessionID string) error
	PairingSession() *models.PairingSession
	Roster() models.Roster
	CurrentChild() *models.Child
	SelectChild(ctx context.Context, childID int64, pin string) (*models.Child, error)
	ClearCurrentChild(ctx context.Context) error
	Status() engine.Status
	OnNavigationCommitted(ctx context.Context, rawURL string)
	ShouldBlockNavigation(rawURL string) bool
	RequestMoreTime(ctx context.Context, d time.Duration, reason string) (string, error)
	Unpair(ctx context.Context) error
	Subscribe() (<-chan events.Event, func())
	Run(ctx context.Context) error
	Close()
}

type App struct {
	config *config.Config
	engine Engine
	log    logging.Logger
	reader *bufio.Reader
	out    io.Writer

	mu   sync.Mutex
	Mode Mode

	closers []func() error
}

// NewApp opens local state under cfg.DataDir and builds the engine.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Nop()
	}
	dir, err := filex.EnsureDataDir(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	log.Debug(ctx, "using data dir", "path", dir)

	db, err := storage.InitDatabase(ctx, filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	store, err := credstore.NewFileStore(filepath.Join(dir, "secrets"))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	c, err := client.NewHTTPClient(cfg.GuardianURL,
		client.WithRequestTimeout(cfg.RequestTimeout),
		client.WithPairingTimeout(cfg.PairingTimeout),
		client.WithDefaultCacheTTL(cfg.CacheTTL),
		client.WithLogger(log.With("component", "client")))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	e, err := engine.New(ctx, engine.Options{
		Client:          c,
		Store:           store,
		DB:              db,
		Logger:          log,
		DeviceName:      cfg.DeviceName,
		CheckInterval:   cfg.CheckInterval,
		PairingTimeout:  cfg.PairingTimeout,
		PairingInterval: cfg.PairingPollInterval,
		IdleThreshold:   cfg.IdleThreshold,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := newApp(cfg, e, log, os.Stdin, os.Stdout)
	a.closers = append(a.closers, db.Close)
	return a, nil
}

func newApp(cfg *config.Config, e Engine, log logging.Logger, in io.Reader, out io.Writer) *App {
	if log == nil {
		log = logging.Nop()
	}
	return &App{config: cfg, engine: e, log: log, reader: bufio.NewReader(in), out: out}
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		a.log.Info(context.Background(), "mode changed", "mode", mode)
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

// Run starts the engine loop and the event printer, then blocks in the REPL.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	evs, unsub := a.engine.Subscribe()
	defer unsub()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := a.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error(ctx, "engine stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		a.watchEvents(ctx, evs)
	}()

	a.Root(ctx)

	cancel()
	wg.Wait()
	return a.Close()
}

// Close releases the engine and local storage.
func (a *App) Close() error {
	a.engine.Close()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) isPaired() bool {
	return a.engine.IsPaired()
}

// refreshMode derives the prompt mode from engine state.
func (a *App) refreshMode() {
	st := a.engine.Status()
	switch {
	case !st.Enabled:
		a.setMode(ModeDisabled)
	case st.Stale:
		a.setMode(ModeOffline)
	default:
		a.setMode(ModeOnline)
	}
}
