package policy

import (
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
)

// balanceKey picks the balance that governs a: its own, else screen time.
func balanceKey(snap *models.OfflineSnapshot, a models.ActivityID) (models.ActivityID, bool) {
	if snap == nil {
		return "", false
	}
	if _, ok := snap.Balances[a]; ok {
		return a, true
	}
	if _, ok := snap.Balances[models.ActivityScreenTime]; ok {
		return models.ActivityScreenTime, true
	}
	return "", false
}

// remainingAt projects a limit forward from its anchor, floored at zero.
func remainingAt(remaining int64, anchor, now time.Time) int64 {
	if remaining < 0 {
		return models.Unlimited
	}
	if elapsed := int64(now.Sub(anchor) / time.Second); elapsed > 0 {
		remaining -= elapsed
	}
	return max(remaining, 0)
}

// Evaluate approximates the guardian's verdict for activity a at now from
// the last known result and the offline snapshot. Bans and blocks from
// either source block. The result is always marked stale. With no data at
// all browsing is allowed.
func Evaluate(last *models.CheckResult, snap *models.OfflineSnapshot, a models.ActivityID, now time.Time) models.Decision {
	d := models.Decision{Allowed: true, RemainingSeconds: models.Unlimited, Stale: true}

	if last != nil {
		st := last.Status(a)
		d.Banned = st.Banned
		d.ScheduledBlock = st.ScheduledBlock.Active(now)
		d.RemainingSeconds = remainingAt(st.RemainingSeconds, last.FetchedAt, now)
		if !last.Allowed {
			d.Allowed = false
		}
	}

	if key, ok := balanceKey(snap, a); ok {
		bal := snap.Balances[key]
		d.Banned = d.Banned || bal.Banned
		// The balance is the refined view: it only drains while time is charged.
		d.RemainingSeconds = remainingAt(bal.RemainingSeconds, bal.UpdatedAt, now)
	}

	if ScheduledBlock(last, snap, a, now) {
		d.ScheduledBlock = true
	}

	if d.Banned || d.ScheduledBlock || d.RemainingSeconds == 0 {
		d.Allowed = false
	}
	return d
}

// Fresh turns a fresh server result into a decision for a.
func Fresh(res *models.CheckResult, a models.ActivityID, now time.Time) models.Decision {
	st := res.Status(a)
	d := models.Decision{
		Allowed:          res.Allowed,
		RemainingSeconds: st.RemainingSeconds,
		Banned:           st.Banned,
		ScheduledBlock:   st.ScheduledBlock.Active(now),
	}
	if d.Banned || d.ScheduledBlock || d.RemainingSeconds == 0 {
		d.Allowed = false
	}
	return d
}
