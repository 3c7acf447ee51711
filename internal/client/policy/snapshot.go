package policy

import (
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
)

// Seed builds the offline snapshot from a successful check. Balances are
// anchored at the result's FetchedAt. The deficit starts at zero because
// the previous one was sent with the request. When the server omits a home
// timezone the previous one, then fallbackTZ, is kept.
func Seed(res *models.CheckResult, windows []models.TimeWindow, homeTZ string, prev *models.OfflineSnapshot, fallbackTZ string) *models.OfflineSnapshot {
	snap := &models.OfflineSnapshot{
		ChildID:      res.ChildID,
		Windows:      windows,
		Balances:     make(map[models.ActivityID]models.Balance, len(res.Activities)),
		HomeTimezone: homeTZ,
		UpdatedAt:    res.FetchedAt,
	}
	if snap.HomeTimezone == "" && prev != nil {
		snap.HomeTimezone = prev.HomeTimezone
	}
	if snap.HomeTimezone == "" {
		snap.HomeTimezone = fallbackTZ
	}
	if snap.Windows == nil {
		snap.Windows = []models.TimeWindow{}
	}

	for a, st := range res.Activities {
		snap.Balances[a] = models.Balance{
			RemainingSeconds: st.RemainingSeconds,
			Banned:           st.Banned,
			UpdatedAt:        res.FetchedAt,
		}
	}
	return snap
}

// Tick charges the time since the snapshot was last accounted to activity
// a. The governing balance is decreased; time beyond it goes to the
// deficit. Every balance is re-anchored, so switching activity never
// charges the same interval twice. It returns the ledger entry to add, with
// zero Seconds when nothing is to be recorded.
func Tick(snap *models.OfflineSnapshot, a models.ActivityID, now time.Time) models.UsageEntry {
	key, ok := balanceKey(snap, a)
	if !ok {
		return models.UsageEntry{}
	}

	elapsed := int64(now.Sub(snap.UpdatedAt) / time.Second)
	if elapsed <= 0 {
		return models.UsageEntry{}
	}

	bal := snap.Balances[key]
	if bal.RemainingSeconds >= 0 {
		if elapsed > bal.RemainingSeconds {
			snap.Deficit += elapsed - bal.RemainingSeconds
			bal.RemainingSeconds = 0
		} else {
			bal.RemainingSeconds -= elapsed
		}
	}
	snap.Balances[key] = bal
	anchor(snap, snap.UpdatedAt.Add(time.Duration(elapsed)*time.Second))

	return models.UsageEntry{Day: Day(snap.HomeTimezone, now), Activity: a, Seconds: elapsed}
}

// Idle re-anchors the snapshot at now without charging. Used while browsing
// is blocked, nobody is selected or the engine is disabled.
func Idle(snap *models.OfflineSnapshot, now time.Time) {
	if snap == nil || !now.After(snap.UpdatedAt) {
		return
	}
	anchor(snap, now)
}

func anchor(snap *models.OfflineSnapshot, at time.Time) {
	for k, bal := range snap.Balances {
		bal.UpdatedAt = at
		snap.Balances[k] = bal
	}
	snap.UpdatedAt = at
}
