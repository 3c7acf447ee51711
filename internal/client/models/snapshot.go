package models

import "time"

// TimeWindow is a locally enforced schedule entry: the activity is blocked
// between Start and End (minutes since local midnight) on the listed days.
// End < Start wraps past midnight. Days uses 1=Monday .. 7=Sunday. When
// DayTypes is set the window also applies on days of those types.
type TimeWindow struct {
	Activity ActivityID `json:"activity"`
	Days     []int      `json:"days,omitempty"`
	DayTypes []string   `json:"day_types,omitempty"`
	Start    int        `json:"start"`
	End      int        `json:"end"`
}

// Balance is the offline running balance for one activity.
type Balance struct {
	RemainingSeconds int64     `json:"remaining_seconds"`
	Banned           bool      `json:"banned"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// OfflineSnapshot is the locally persisted subset of policy sufficient to
// approximate server decisions without connectivity.
type OfflineSnapshot struct {
	ChildID      int64                  `json:"child_id"`
	Windows      []TimeWindow           `json:"windows"`
	Balances     map[ActivityID]Balance `json:"balances"`
	Deficit      int64                  `json:"deficit"`
	HomeTimezone string                 `json:"home_timezone"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// UsageEntry is one ledger row: seconds consumed offline and not yet synced.
type UsageEntry struct {
	Day      string     `json:"date"`
	Activity ActivityID `json:"activity"`
	Seconds  int64      `json:"seconds"`
}
