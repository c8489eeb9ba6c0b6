package schemas

import "strings"

// -- Severity Schemas --

// Severity represents the severity level of a finding or asset, ranging from
// critical to informational. The values are lowercase to align with database ENUMs.
type Severity string

// Constants defining the standard severity levels.
const (
	SeverityCritical Severity = "critical" // Immediate action required.
	SeverityHigh     Severity = "high"     // Serious issue, address urgently.
	SeverityMedium   Severity = "medium"   // Moderate risk, normal development cycle.
	SeverityLow      Severity = "low"      // Minor issue, address when convenient.
	SeverityInfo     Severity = "info"     // Informational, no direct security impact.
	SeverityUnknown  Severity = "unknown"  // Severity could not be determined.
)

// Severities returns all severity levels in order of priority, highest first.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo, SeverityUnknown}
}

// String returns the string representation of the severity.
func (s Severity) String() string { return string(s) }

// Priority returns the numeric priority of the severity. Higher is more severe.
func (s Severity) Priority() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// IsAtLeast reports whether this severity is at least as high as the other.
func (s Severity) IsAtLeast(other Severity) bool {
	return s.Priority() >= other.Priority()
}

// ParseSeverity normalizes the severity strings produced by upstream scanners
// and integrations (CRITICAL/HIGH/... from vulnerability feeds, error/warning
// from SARIF-style tools) to a standard Severity.
func ParseSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "crit":
		return SeverityCritical
	case "high", "error":
		return SeverityHigh
	case "medium", "moderate", "warning":
		return SeverityMedium
	case "low", "minor":
		return SeverityLow
	case "info", "informational", "note", "none":
		return SeverityInfo
	default:
		return SeverityUnknown
	}
}
