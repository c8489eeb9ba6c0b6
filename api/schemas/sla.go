package schemas

import "time"

// -- SLA Schemas --

// SlaPolicy maps severities to the maximum allowed remediation time in hours.
// A policy is immutable for the duration of an assessment period; it is owned
// by configuration and referenced by SlaState.
type SlaPolicy struct {
	// Hours maps each severity to its remediation window.
	Hours map[Severity]int `json:"hours" yaml:"hours"`

	// DefaultSeverity is the fallback tier used when a severity has no entry
	// in Hours. Empty means no fallback: unmapped severities are an error.
	DefaultSeverity Severity `json:"default_severity,omitempty" yaml:"default_severity,omitempty"`

	// WarningThresholdHours controls how long before the due date a warning
	// fires. Zero disables warnings.
	WarningThresholdHours int `json:"warning_threshold_hours,omitempty" yaml:"warning_threshold_hours,omitempty"`
}

// Extension is an immutable record of a deadline extension.
type Extension struct {
	ID     string    `json:"id"`
	Hours  int       `json:"hours"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// SlaState is the long-lived SLA tracking state of one entity. It is mutated
// incrementally by periodic evaluation; Breached is monotonic and only an
// extension that moves the due date into the future may clear it.
type SlaState struct {
	DueDate     time.Time   `json:"due_date"`
	WarningSent bool        `json:"warning_sent"`
	Breached    bool        `json:"breached"`
	BreachedAt  *time.Time  `json:"breached_at,omitempty"`
	Extensions  []Extension `json:"extensions,omitempty"`
}

// RemainingHours reports the signed number of hours until the due date.
// Negative values mean the due date is in the past. This is computed on
// demand rather than stored, so it can never go stale.
func (s SlaState) RemainingHours(now time.Time) float64 {
	return s.DueDate.Sub(now).Hours()
}

// Overdue reports whether the due date has passed at the given instant.
func (s SlaState) Overdue(now time.Time) bool {
	return now.After(s.DueDate)
}
