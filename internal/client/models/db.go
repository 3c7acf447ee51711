// Package models defines the engine's data model: pairing credentials, the
// child roster, check results, the offline snapshot and identity state.
package models

// ActivityID is a coarse usage category used for time accounting.
type ActivityID string

const (
	ActivityInternet   ActivityID = "internet"
	ActivityGaming     ActivityID = "gaming"
	ActivitySocial     ActivityID = "social"
	ActivityEducation  ActivityID = "education"
	ActivityScreenTime ActivityID = "screen_time"
)

// AllActivities lists every known activity in a stable order.
var AllActivities = []ActivityID{
	ActivityInternet, ActivityGaming, ActivitySocial, ActivityEducation, ActivityScreenTime,
}

// Valid reports whether a is one of the known activities.
func (a ActivityID) Valid() bool {
	for _, k := range AllActivities {
		if a == k {
			return true
		}
	}
	return false
}
