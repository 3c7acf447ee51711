package policy

import "github.com/dmitrijs2005/gophguard/internal/client/models"

// Severity is an escalation level for remaining time.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityGentle
	SeverityWarning
	SeverityUrgent
	SeverityCritical
	SeverityBlocked
)

var severityNames = [...]string{"none", "gentle", "warning", "urgent", "critical", "blocked"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "unknown"
}

// ExposesSeconds reports whether the UI should show an exact countdown.
func (s Severity) ExposesSeconds() bool {
	return s == SeverityUrgent || s == SeverityCritical
}

// SeverityFor maps remaining seconds to a severity. Negative means no limit.
func SeverityFor(remaining int64) Severity {
	switch {
	case remaining < 0:
		return SeverityNone
	case remaining == 0:
		return SeverityBlocked
	case remaining < 60:
		return SeverityCritical
	case remaining < 300:
		return SeverityUrgent
	case remaining < 900:
		return SeverityWarning
	}
	return SeverityGentle
}

// Scheduler is edge-triggered: it reports a change only when the severity
// differs from the previous observation. The first observation is a
// baseline and is reported only when it is already SeverityWarning or
// worse. Not safe for concurrent use.
type Scheduler struct {
	last   Severity
	primed bool
}

// Observe records remaining and returns the current severity and whether it
// should be announced.
func (s *Scheduler) Observe(remaining int64) (Severity, bool) {
	sev := SeverityFor(remaining)
	if !s.primed {
		s.primed = true
		s.last = sev
		return sev, sev >= SeverityWarning
	}
	if sev == s.last {
		return sev, false
	}
	s.last = sev
	return sev, true
}

// ObserveDecision is Observe for a decision; a blocked decision is blocked
// regardless of the remaining time it carries.
func (s *Scheduler) ObserveDecision(d models.Decision) (Severity, bool) {
	if !d.Allowed {
		return s.Observe(0)
	}
	return s.Observe(d.RemainingSeconds)
}

// Reset forgets the baseline, e.g. when the current child changes.
func (s *Scheduler) Reset() {
	*s = Scheduler{}
}
