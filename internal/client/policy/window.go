package policy

import (
	"slices"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
)

const (
	minutesPerDay = 24 * 60
	dayLayout     = time.DateOnly
)

// isoWeekday maps time.Weekday to 1=Monday .. 7=Sunday.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// dayTypes resolves the server's day type for a local calendar date. Only
// the fetch day and the day after are known.
type dayTypes struct {
	fetched  string
	today    string
	tomorrow string
	nextDay  string
}

func newDayTypes(last *models.CheckResult, loc *time.Location) dayTypes {
	if last == nil || last.FetchedAt.IsZero() {
		return dayTypes{}
	}
	f := last.FetchedAt.In(loc)
	return dayTypes{
		fetched:  f.Format(dayLayout),
		nextDay:  f.AddDate(0, 0, 1).Format(dayLayout),
		today:    last.TodayDayType,
		tomorrow: last.TomorrowDayType,
	}
}

func (d dayTypes) of(t time.Time) string {
	switch t.Format(dayLayout) {
	case d.fetched:
		return d.today
	case d.nextDay:
		return d.tomorrow
	}
	return ""
}

func dayMatches(w models.TimeWindow, day time.Time, dt dayTypes) bool {
	if len(w.Days) == 0 && len(w.DayTypes) == 0 {
		return true
	}
	if slices.Contains(w.Days, isoWeekday(day)) {
		return true
	}
	if t := dt.of(day); t != "" && slices.Contains(w.DayTypes, t) {
		return true
	}
	return false
}

// windowActive reports whether local falls inside w. A wrapping window that
// started yesterday is matched against yesterday's day.
func windowActive(w models.TimeWindow, local time.Time, dt dayTypes) bool {
	if w.Start == w.End {
		return false
	}
	minute := local.Hour()*60 + local.Minute()

	if w.Start < w.End {
		return minute >= w.Start && minute < w.End && dayMatches(w, local, dt)
	}
	if minute >= w.Start {
		return dayMatches(w, local, dt)
	}
	if minute < w.End {
		return dayMatches(w, local.AddDate(0, 0, -1), dt)
	}
	return false
}

// homeLocation returns the snapshot's zone, or UTC when it is unknown.
func homeLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ScheduledBlock reports whether any window for activity a (or for overall
// screen time) blocks at now, evaluated in the snapshot's home timezone.
func ScheduledBlock(last *models.CheckResult, snap *models.OfflineSnapshot, a models.ActivityID, now time.Time) bool {
	if snap == nil {
		return false
	}
	loc := homeLocation(snap.HomeTimezone)
	local := now.In(loc)
	dt := newDayTypes(last, loc)

	for _, w := range snap.Windows {
		if w.Activity != a && w.Activity != models.ActivityScreenTime {
			continue
		}
		if windowActive(w, local, dt) {
			return true
		}
	}
	return false
}

// Day returns the ledger day for now in the home timezone.
func Day(tz string, now time.Time) string {
	return now.In(homeLocation(tz)).Format(dayLayout)
}
