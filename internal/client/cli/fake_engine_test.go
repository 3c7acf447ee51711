package cli

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/engine"
	"github.com/dmitrijs2005/gophguard/internal/client/events"
	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/common"
)

type fakeEngine struct {
	paired   bool
	enabled  bool
	roster   models.Roster
	current  *models.Child
	status   engine.Status
	session  *models.PairingSession
	blocked  map[string]bool
	pinGiven string

	navigated []string
	cancelled []string
	more      []time.Duration
	reasons   []string
	startErr  error
	onUpdate  func(models.PairingSession, error)
	bus       *events.Bus
	closed    bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{enabled: true, blocked: map[string]bool{}, bus: events.NewBus()}
}

func (f *fakeEngine) IsPaired() bool { return f.paired }
func (f *fakeEngine) Enabled() bool  { return f.enabled }
func (f *fakeEngine) SetEnabled(_ context.Context, on bool) error {
	f.enabled = on
	f.status.Enabled = on
	return nil
}
func (f *fakeEngine) StartPairing(_ context.Context, t models.Transport, onUpdate func(models.PairingSession, error)) (*models.PairingSession, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.session = &models.PairingSession{ID: "s1", Transport: t, QRPayload: "gg://pair/s1", PinCode: "482913",
		ExpiresAt: time.Now().Add(5 * time.Minute), Status: models.PairingPending}
	f.onUpdate = onUpdate
	return f.session, nil
}
func (f *fakeEngine) CancelPairing(_ context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}
func (f *fakeEngine) PairingSession() *models.PairingSession { return f.session }
func (f *fakeEngine) Roster() models.Roster                  { return f.roster }
func (f *fakeEngine) CurrentChild() *models.Child            { return f.current }
func (f *fakeEngine) SelectChild(_ context.Context, id int64, pin string) (*models.Child, error) {
	f.pinGiven = pin
	c, ok := f.roster.Find(id)
	if !ok {
		return nil, common.ErrNotFound
	}
	if c.HasPin() && pin != "1234" {
		return nil, common.ErrInvalidPin
	}
	f.current = c
	return c, nil
}
func (f *fakeEngine) ClearCurrentChild(context.Context) error {
	f.current = nil
	return nil
}
func (f *fakeEngine) Status() engine.Status { return f.status }
func (f *fakeEngine) OnNavigationCommitted(_ context.Context, rawURL string) {
	f.navigated = append(f.navigated, rawURL)
}
func (f *fakeEngine) ShouldBlockNavigation(rawURL string) bool { return f.blocked[rawURL] }
func (f *fakeEngine) RequestMoreTime(_ context.Context, d time.Duration, reason string) (string, error) {
	if !f.paired {
		return "", common.ErrNotPaired
	}
	f.more = append(f.more, d)
	f.reasons = append(f.reasons, reason)
	return "req-1", nil
}
func (f *fakeEngine) Unpair(context.Context) error {
	f.paired = false
	return nil
}
func (f *fakeEngine) Subscribe() (<-chan events.Event, func()) { return f.bus.Subscribe() }
func (f *fakeEngine) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
func (f *fakeEngine) Close() {
	f.closed = true
	f.bus.Close()
}
