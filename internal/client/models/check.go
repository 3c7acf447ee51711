package models

import "time"

// Unlimited marks an activity without a time limit.
const Unlimited int64 = -1

// Block is a scheduled block window reported by the server.
type Block struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Active reports whether now falls inside the block.
func (b *Block) Active(now time.Time) bool {
	return b != nil && !now.Before(b.Start) && now.Before(b.End)
}

// ActivityStatus is the server's verdict for one activity.
type ActivityStatus struct {
	RemainingSeconds int64     `json:"remaining_seconds"`
	ExpiresAt        time.Time `json:"expires_at"`
	Banned           bool      `json:"banned"`
	ScheduledBlock   *Block    `json:"scheduled_block,omitempty"`
}

// CheckResult is the latest authorization verdict for a child.
type CheckResult struct {
	ChildID         int64                         `json:"child_id"`
	Allowed         bool                          `json:"allowed"`
	Activities      map[ActivityID]ActivityStatus `json:"activities"`
	TodayDayType    string                        `json:"today_day_type,omitempty"`
	TomorrowDayType string                        `json:"tomorrow_day_type,omitempty"`
	FetchedAt       time.Time                     `json:"fetched_at"`
	ExpiresAt       time.Time                     `json:"expires_at"`
}

// Fresh reports whether the result may still be served without a network call.
func (r *CheckResult) Fresh(now time.Time) bool {
	return r != nil && now.Before(r.ExpiresAt) && !r.FetchedAt.After(now)
}

// ComputeExpiry sets ExpiresAt to the earliest activity expiry, or
// FetchedAt+def when no activity carries one.
func (r *CheckResult) ComputeExpiry(def time.Duration) {
	var earliest time.Time
	for _, st := range r.Activities {
		if st.ExpiresAt.IsZero() {
			continue
		}
		if earliest.IsZero() || st.ExpiresAt.Before(earliest) {
			earliest = st.ExpiresAt
		}
	}
	if earliest.IsZero() {
		earliest = r.FetchedAt.Add(def)
	}
	r.ExpiresAt = earliest
}

// Status returns the status for a, falling back to screen time, then to an
// unlimited status when the server said nothing about it.
func (r *CheckResult) Status(a ActivityID) ActivityStatus {
	if st, ok := r.Activities[a]; ok {
		return st
	}
	if st, ok := r.Activities[ActivityScreenTime]; ok {
		return st
	}
	return ActivityStatus{RemainingSeconds: Unlimited}
}

// Decision is what the host acts on.
type Decision struct {
	Allowed          bool
	RemainingSeconds int64
	Banned           bool
	ScheduledBlock   bool
	Stale            bool
}
