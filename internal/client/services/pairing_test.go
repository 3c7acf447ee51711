package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/credstore"
	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRoster = models.Roster{
	{ID: 0, Name: "Parent"},
	{ID: 7, Name: "Ann"},
}

func TestPairing_InitiatePollComplete(t *testing.T) {
	ctx := context.Background()
	srv, c := newGuardian(t, nil)
	store := credstore.NewMemoryStore()
	sink := &storeSink{store: store}
	svc := NewPairingService(c, sink)

	sess, err := svc.Initiate(ctx, models.TransportQR, "laptop", "dev-1")
	require.NoError(t, err)
	assert.Equal(t, models.PairingPending, sess.Status)

	got, err := svc.Poll(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PairingPending, got.Status)

	srv.Scan(sess.ID)
	got, err = svc.Poll(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PairingScanned, got.Status)

	srv.Complete(sess.ID, testCreds, testRoster)
	got, err = svc.Poll(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PairingCompleted, got.Status)

	assert.Equal(t, 1, store.Len(), "exactly one credentials record")
	assert.NotEmpty(t, sink.roster)
	creds, err := credstore.LoadCredentials(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, testCreds, *creds)

	// Further polls do not apply twice.
	got, err = svc.Poll(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PairingCompleted, got.Status)
	assert.Equal(t, int32(1), sink.calls.Load())
}

func TestPairing_ExpiryMeasuredOnInjectedClock(t *testing.T) {
	clk := newClock()
	_, c := newGuardian(t, clk)
	svc := NewPairingService(c, &storeSink{store: credstore.NewMemoryStore()},
		WithPairingTimeout(5*time.Minute),
		WithPairingClock(clk.Now))

	sess, err := svc.Initiate(context.Background(), models.TransportQR, "laptop", "dev-1")
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(5*time.Minute), sess.ExpiresAt)

	// The injected clock is months behind the wall clock.
	assert.Never(t, func() bool {
		return svc.Current().Status != models.PairingPending
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestPairing_ExpiresWithoutPolling(t *testing.T) {
	_, c := newGuardian(t, nil)
	var mu sync.Mutex
	var seen []models.PairingStatus
	svc := NewPairingService(c, &storeSink{store: credstore.NewMemoryStore()},
		WithPairingTimeout(50*time.Millisecond),
		WithPairingObserver(func(s models.PairingSession) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, s.Status)
		}))

	sess, err := svc.Initiate(context.Background(), models.TransportPIN, "laptop", "dev-1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.PinCode)

	require.Eventually(t, func() bool {
		return svc.Current().Status == models.PairingExpired
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []models.PairingStatus{models.PairingPending, models.PairingExpired}, seen)
	mu.Unlock()

	_, err = svc.Poll(context.Background(), sess.ID)
	assert.ErrorIs(t, err, common.ErrSessionExpired)
}

func TestPairing_ServerSideExpiry(t *testing.T) {
	srv, c := newGuardian(t, nil)
	svc := NewPairingService(c, &storeSink{store: credstore.NewMemoryStore()})

	sess, err := svc.Initiate(context.Background(), models.TransportQR, "laptop", "dev-1")
	require.NoError(t, err)

	srv.Expire(sess.ID)
	got, err := svc.Poll(context.Background(), sess.ID)
	assert.ErrorIs(t, err, common.ErrSessionExpired)
	assert.Equal(t, models.PairingExpired, got.Status)
}

func TestPairing_InitNetworkFailureIsDistinct(t *testing.T) {
	srv, c := newGuardian(t, nil)
	srv.Close()

	svc := NewPairingService(c, &storeSink{store: credstore.NewMemoryStore()})
	_, err := svc.Initiate(context.Background(), models.TransportQR, "laptop", "dev-1")
	assert.ErrorIs(t, err, common.ErrNetworkUnavailable)
	assert.NotErrorIs(t, err, common.ErrSessionExpired)
	assert.Nil(t, svc.Current())
}

func TestPairing_CancelIsIdempotent(t *testing.T) {
	_, c := newGuardian(t, nil)
	svc := NewPairingService(c, &storeSink{store: credstore.NewMemoryStore()})
	ctx := context.Background()

	sess, err := svc.Initiate(ctx, models.TransportQR, "laptop", "dev-1")
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, sess.ID))
	require.NoError(t, svc.Cancel(ctx, sess.ID))
	require.NoError(t, svc.Cancel(ctx, "unknown"))
	assert.Equal(t, models.PairingCancelled, svc.Current().Status)

	got, err := svc.Poll(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PairingCancelled, got.Status)
}

func TestPairing_NewSessionCancelsPrevious(t *testing.T) {
	_, c := newGuardian(t, nil)
	var mu sync.Mutex
	cancelled := map[string]bool{}
	svc := NewPairingService(c, &storeSink{store: credstore.NewMemoryStore()},
		WithPairingObserver(func(s models.PairingSession) {
			mu.Lock()
			defer mu.Unlock()
			if s.Status == models.PairingCancelled {
				cancelled[s.ID] = true
			}
		}))
	ctx := context.Background()

	first, err := svc.Initiate(ctx, models.TransportQR, "laptop", "dev-1")
	require.NoError(t, err)
	second, err := svc.Initiate(ctx, models.TransportPIN, "laptop", "dev-1")
	require.NoError(t, err)

	mu.Lock()
	assert.True(t, cancelled[first.ID])
	mu.Unlock()
	assert.Equal(t, second.ID, svc.Current().ID)

	_, err = svc.Poll(ctx, first.ID)
	assert.ErrorIs(t, err, common.ErrNoActiveSession)
}

func TestPairing_SinkFailureLeavesNothing(t *testing.T) {
	srv, c := newGuardian(t, nil)
	store := credstore.NewMemoryStore()
	svc := NewPairingService(c, &storeSink{store: store, err: errors.New("disk full")})
	ctx := context.Background()

	sess, err := svc.Initiate(ctx, models.TransportQR, "laptop", "dev-1")
	require.NoError(t, err)
	srv.Complete(sess.ID, testCreds, testRoster)

	got, err := svc.Poll(ctx, sess.ID)
	assert.ErrorIs(t, err, common.ErrPairingFailed)
	assert.Equal(t, models.PairingFailed, got.Status)
	assert.Zero(t, store.Len())
}

func TestPairing_EmptyRosterIsMalformed(t *testing.T) {
	srv, c := newGuardian(t, nil)
	store := credstore.NewMemoryStore()
	svc := NewPairingService(c, &storeSink{store: store})
	ctx := context.Background()

	sess, err := svc.Initiate(ctx, models.TransportQR, "laptop", "dev-1")
	require.NoError(t, err)
	srv.Complete(sess.ID, testCreds, nil)

	got, err := svc.Poll(ctx, sess.ID)
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
	assert.Equal(t, models.PairingPending, got.Status)
	assert.Zero(t, store.Len())
}

func TestPairing_GuardianDeclined(t *testing.T) {
	srv, c := newGuardian(t, nil)
	svc := NewPairingService(c, &storeSink{store: credstore.NewMemoryStore()})
	ctx := context.Background()

	sess, err := svc.Initiate(ctx, models.TransportQR, "laptop", "dev-1")
	require.NoError(t, err)
	srv.Fail(sess.ID)

	got, err := svc.Poll(ctx, sess.ID)
	assert.ErrorIs(t, err, common.ErrPairingFailed)
	assert.Equal(t, models.PairingFailed, got.Status)
}

func TestPairing_StartPollingCompletes(t *testing.T) {
	srv, c := newGuardian(t, nil)
	store := credstore.NewMemoryStore()
	svc := NewPairingService(c, &storeSink{store: store})
	ctx := context.Background()

	sess, err := svc.Initiate(ctx, models.TransportQR, "laptop", "dev-1")
	require.NoError(t, err)

	updates := make(chan models.PairingSession, 64)
	require.NoError(t, svc.StartPolling(ctx, sess.ID, 10*time.Millisecond, func(s models.PairingSession, _ error) {
		updates <- s
	}))

	require.Eventually(t, func() bool { return srv.Polls() >= 2 }, 2*time.Second, 5*time.Millisecond)
	srv.Complete(sess.ID, testCreds, testRoster)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-updates:
			if u.Status == models.PairingCompleted {
				assert.Equal(t, 1, store.Len())
				return
			}
		case <-deadline:
			t.Fatal("polling never completed")
		}
	}
}

func TestPairing_CancelStopsPolling(t *testing.T) {
	srv, c := newGuardian(t, nil)
	svc := NewPairingService(c, &storeSink{store: credstore.NewMemoryStore()})
	ctx := context.Background()

	sess, err := svc.Initiate(ctx, models.TransportQR, "laptop", "dev-1")
	require.NoError(t, err)
	require.NoError(t, svc.StartPolling(ctx, sess.ID, 5*time.Millisecond, nil))
	require.Eventually(t, func() bool { return srv.Polls() >= 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, svc.Cancel(ctx, sess.ID))
	time.Sleep(20 * time.Millisecond)
	n := srv.Polls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, srv.Polls())

	assert.ErrorIs(t, svc.StartPolling(ctx, sess.ID, time.Millisecond, nil), common.ErrNoActiveSession)
}
