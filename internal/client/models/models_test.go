package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckResult_ComputeExpiry_UsesEarliestActivity(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := &CheckResult{
		FetchedAt: now,
		Activities: map[ActivityID]ActivityStatus{
			ActivityInternet: {ExpiresAt: now.Add(90 * time.Second)},
			ActivityGaming:   {ExpiresAt: now.Add(30 * time.Second)},
			ActivitySocial:   {},
		},
	}
	r.ComputeExpiry(time.Minute)
	assert.Equal(t, now.Add(30*time.Second), r.ExpiresAt)
}

func TestCheckResult_ComputeExpiry_DefaultsWhenAbsent(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := &CheckResult{FetchedAt: now, Activities: map[ActivityID]ActivityStatus{ActivityInternet: {}}}
	r.ComputeExpiry(time.Minute)
	assert.Equal(t, now.Add(time.Minute), r.ExpiresAt)
}

func TestCheckResult_Fresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := &CheckResult{FetchedAt: now, ExpiresAt: now.Add(time.Minute)}

	assert.True(t, r.Fresh(now.Add(59*time.Second)))
	assert.False(t, r.Fresh(now.Add(time.Minute)))
	assert.False(t, r.Fresh(now.Add(-time.Second)), "fetched in the future is never fresh")

	var nilResult *CheckResult
	assert.False(t, nilResult.Fresh(now))
}

func TestCheckResult_StatusFallbacks(t *testing.T) {
	r := &CheckResult{Activities: map[ActivityID]ActivityStatus{
		ActivityScreenTime: {RemainingSeconds: 42},
		ActivityGaming:     {RemainingSeconds: 7},
	}}
	assert.EqualValues(t, 7, r.Status(ActivityGaming).RemainingSeconds)
	assert.EqualValues(t, 42, r.Status(ActivitySocial).RemainingSeconds)

	empty := &CheckResult{}
	assert.Equal(t, Unlimited, empty.Status(ActivityInternet).RemainingSeconds)
}

func TestBlock_Active(t *testing.T) {
	start := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	b := &Block{Start: start, End: start.Add(time.Hour)}

	assert.True(t, b.Active(start))
	assert.True(t, b.Active(start.Add(59*time.Minute)))
	assert.False(t, b.Active(start.Add(time.Hour)))
	assert.False(t, b.Active(start.Add(-time.Second)))

	var none *Block
	assert.False(t, none.Active(start))
}

func TestRoster_FindAndChildren(t *testing.T) {
	r := Roster{{ID: 0, Name: "Parent"}, {ID: 3, Name: "Ann"}, {ID: 5, Name: "Bob"}}

	c, ok := r.Find(5)
	require.True(t, ok)
	assert.Equal(t, "Bob", c.Name)

	c.Name = "changed"
	again, _ := r.Find(5)
	assert.Equal(t, "Bob", again.Name, "Find returns a copy")

	_, ok = r.Find(9)
	assert.False(t, ok)

	kids := r.Children()
	require.Len(t, kids, 2)
	assert.Equal(t, int64(3), kids[0].ID)
}

func TestChild_HasPinAndIsParent(t *testing.T) {
	assert.False(t, (&Child{ID: 1}).HasPin())
	assert.False(t, (&Child{ID: 1, PinHash: "sha256:x"}).HasPin())
	assert.True(t, (&Child{ID: 1, PinHash: "sha256:x", PinSalt: "s"}).HasPin())
	assert.True(t, (&Child{ID: 0}).IsParent())
}

func TestCredentials_StringRedactsToken(t *testing.T) {
	c := Credentials{UserID: "u", PairID: "p", PairToken: "super-secret"}
	assert.NotContains(t, c.String(), "super-secret")
	assert.True(t, c.Complete())
	assert.False(t, (&Credentials{UserID: "u"}).Complete())
}

func TestPairingStatus_Terminal(t *testing.T) {
	for _, s := range []PairingStatus{PairingCompleted, PairingFailed, PairingCancelled, PairingExpired} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []PairingStatus{PairingIdle, PairingInitiating, PairingPending, PairingScanned, PairingCompleting} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestActivityID_Valid(t *testing.T) {
	assert.True(t, ActivitySocial.Valid())
	assert.False(t, ActivityID("cooking").Valid())
}
