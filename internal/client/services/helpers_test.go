package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/client"
	"github.com/dmitrijs2005/gophguard/internal/client/credstore"
	"github.com/dmitrijs2005/gophguard/internal/client/guardiantest"
	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophguard/internal/client/storage"
	"github.com/stretchr/testify/require"
)

var testCreds = models.Credentials{UserID: "u1", PairID: "p1", PairToken: "tok-1"}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newGuardian(t *testing.T, clk *fakeClock) (*guardiantest.Server, *client.HTTPClient) {
	t.Helper()
	srv := guardiantest.New()
	t.Cleanup(srv.Close)

	opts := []client.Option{client.WithRetry(0, time.Millisecond)}
	if clk != nil {
		opts = append(opts, client.WithClock(clk.Now))
	}
	c, err := client.NewHTTPClient(srv.URL, opts...)
	require.NoError(t, err)
	return srv, c
}

// storeSink applies pairing outcomes like the engine does, minus events.
type storeSink struct {
	store  credstore.Store
	meta   metadata.Repository
	err    error
	calls  atomic.Int32
	roster models.Roster
}

func (s *storeSink) ApplyPairing(ctx context.Context, o models.PairingOutcome) error {
	s.calls.Add(1)
	if s.err != nil {
		return s.err
	}
	if err := credstore.SaveCredentials(ctx, s.store, o.Credentials); err != nil {
		return err
	}
	if s.meta != nil {
		if err := metadata.SetJSON(ctx, s.meta, metadata.KeyRoster, o.Roster); err != nil {
			_ = credstore.DeleteCredentials(ctx, s.store)
			return err
		}
	}
	s.roster = o.Roster
	return nil
}

// wipeRevoker clears local state the way the engine does on a 401.
type wipeRevoker struct {
	db    *sql.DB
	store credstore.Store
	calls atomic.Int32
}

func (r *wipeRevoker) Revoke(ctx context.Context) error {
	r.calls.Add(1)
	return ClearPairing(ctx, r.db, r.store)
}
