package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sharedRoster() models.Roster {
	return models.Roster{
		{ID: 0, Name: "Parent", PinHash: cryptox.HashPin("9999", "ps"), PinSalt: "ps"},
		{ID: 1, Name: "Ann", PinHash: cryptox.HashPin("1234", "salt-a"), PinSalt: "salt-a"},
		{ID: 2, Name: "Bob"},
	}
}

func newIdentity(t *testing.T, roster models.Roster) (IdentityService, metadata.Repository) {
	t.Helper()
	meta := metadata.NewSQLiteRepository(setupDB(t))
	if roster != nil {
		require.NoError(t, metadata.SetJSON(context.Background(), meta, metadata.KeyRoster, roster))
	}
	return NewIdentityService(meta, 5*time.Minute, nil), meta
}

func TestIdentity_SharedDeviceColdStartNeedsSelection(t *testing.T) {
	svc, meta := newIdentity(t, sharedRoster())
	ctx := context.Background()
	require.NoError(t, meta.Set(ctx, metadata.KeyCurrentChild, []byte("1")))

	need, err := svc.Load(ctx, time.Now())
	require.NoError(t, err)
	assert.True(t, need)
	assert.True(t, svc.State().IsSharedDevice)
	assert.Nil(t, svc.Current())

	v, err := meta.Get(ctx, metadata.KeyCurrentChild)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestIdentity_SingleChildAutoSelects(t *testing.T) {
	svc, meta := newIdentity(t, models.Roster{{ID: 0, Name: "Parent"}, {ID: 4, Name: "Solo", PinHash: "sha256:x", PinSalt: "y"}})
	ctx := context.Background()

	need, err := svc.Load(ctx, time.Now())
	require.NoError(t, err)
	assert.False(t, need)
	assert.False(t, svc.State().IsSharedDevice)
	require.NotNil(t, svc.Current())
	assert.Equal(t, int64(4), svc.Current().ID)

	v, err := meta.Get(ctx, metadata.KeyCurrentChild)
	require.NoError(t, err)
	assert.Equal(t, "4", string(v))
}

func TestIdentity_EmptyRoster(t *testing.T) {
	svc, _ := newIdentity(t, nil)
	need, err := svc.Load(context.Background(), time.Now())
	require.NoError(t, err)
	assert.False(t, need)
	assert.Nil(t, svc.Current())
	assert.Empty(t, svc.Roster())
}

func TestIdentity_SelectChild(t *testing.T) {
	svc, _ := newIdentity(t, sharedRoster())
	ctx := context.Background()
	_, err := svc.Load(ctx, time.Now())
	require.NoError(t, err)

	_, err = svc.SelectChild(ctx, 1, "0000")
	assert.ErrorIs(t, err, common.ErrInvalidPin)
	assert.Nil(t, svc.Current())

	_, err = svc.SelectChild(ctx, 1, "")
	assert.ErrorIs(t, err, common.ErrInvalidPin)

	c, err := svc.SelectChild(ctx, 1, "1234")
	require.NoError(t, err)
	assert.Equal(t, "Ann", c.Name)
	assert.Equal(t, int64(1), *svc.State().CurrentChildID)

	_, err = svc.SelectChild(ctx, 42, "")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, int64(1), svc.Current().ID, "failed selection keeps the current child")
}

func TestIdentity_ChildWithoutPinSelectsUnconditionally(t *testing.T) {
	svc, _ := newIdentity(t, sharedRoster())
	ctx := context.Background()
	_, err := svc.Load(ctx, time.Now())
	require.NoError(t, err)

	c, err := svc.SelectChild(ctx, 2, "anything")
	require.NoError(t, err)
	assert.Equal(t, "Bob", c.Name)
}

func TestIdentity_ParentSelection(t *testing.T) {
	svc, _ := newIdentity(t, sharedRoster())
	ctx := context.Background()
	_, err := svc.Load(ctx, time.Now())
	require.NoError(t, err)

	c, err := svc.SelectChild(ctx, common.ParentID, "9999")
	require.NoError(t, err)
	assert.True(t, c.IsParent())
}

func TestIdentity_IdleResumeClearsSharedSelection(t *testing.T) {
	svc, _ := newIdentity(t, sharedRoster())
	ctx := context.Background()
	t0 := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	_, err := svc.Load(ctx, t0)
	require.NoError(t, err)
	_, err = svc.SelectChild(ctx, 2, "")
	require.NoError(t, err)

	require.NoError(t, svc.Touch(ctx, t0.Add(time.Minute)))
	cleared, err := svc.Resume(ctx, t0.Add(5*time.Minute))
	require.NoError(t, err)
	assert.False(t, cleared)

	cleared, err = svc.Resume(ctx, t0.Add(7*time.Minute))
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.Nil(t, svc.Current())

	cleared, err = svc.Resume(ctx, t0.Add(8*time.Minute))
	require.NoError(t, err)
	assert.False(t, cleared, "nothing left to clear")
}

func TestIdentity_LoadRestoresLastActivity(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	svc, meta := newIdentity(t, sharedRoster())
	ctx := context.Background()
	_, err := svc.Load(ctx, t0)
	require.NoError(t, err)
	require.NoError(t, svc.Touch(ctx, t0.Add(2*time.Minute)))

	restarted := NewIdentityService(meta, 5*time.Minute, nil)
	_, err = restarted.Load(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, t0.Add(2*time.Minute), restarted.State().LastActivityAt)

	// A stored instant from the future is not trusted.
	fresh := NewIdentityService(meta, 5*time.Minute, nil)
	_, err = fresh.Load(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, t0, fresh.State().LastActivityAt)
}

func TestIdentity_IdleResumeKeepsSingleChild(t *testing.T) {
	svc, _ := newIdentity(t, models.Roster{{ID: 4, Name: "Solo"}})
	ctx := context.Background()
	t0 := time.Now()
	_, err := svc.Load(ctx, t0)
	require.NoError(t, err)

	cleared, err := svc.Resume(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.NotNil(t, svc.Current())
}

func TestIdentity_ClearAndReset(t *testing.T) {
	svc, meta := newIdentity(t, sharedRoster())
	ctx := context.Background()
	_, err := svc.Load(ctx, time.Now())
	require.NoError(t, err)
	_, err = svc.SelectChild(ctx, 2, "")
	require.NoError(t, err)

	require.NoError(t, svc.ClearCurrentChild(ctx))
	assert.Nil(t, svc.Current())
	v, err := meta.Get(ctx, metadata.KeyCurrentChild)
	require.NoError(t, err)
	assert.Nil(t, v)

	svc.Reset()
	assert.Empty(t, svc.Roster())
	assert.False(t, svc.State().IsSharedDevice)
}
