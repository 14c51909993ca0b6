// Package models defines the data structures exchanged with copilot clients.
package models

// Alert types. Advisory nudges and substantive violations share one payload
// shape; the type field tells the client how to render them.
const (
	AlertTypeNudge     = "nudge"
	AlertTypeViolation = "compliance_violation"
)

// Severity levels, ordered critical > warning > info.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert is the outbound message delivered to a copilot client when a
// compliance violation is detected in the rep's speech.
type Alert struct {
	Type                string  `json:"type"`
	Timestamp           float64 `json:"timestamp"`
	Severity            string  `json:"severity"`
	Icon                string  `json:"icon"`
	Title               string  `json:"title"`
	Message             string  `json:"message"`
	SuggestedResponse   *string `json:"suggested_response"`
	RegulationReference *string `json:"regulation_reference"`
	Context             string  `json:"context"`
}

// SeverityIcon returns the marker rendered next to an alert of the given
// severity.
func SeverityIcon(severity string) string {
	switch severity {
	case SeverityCritical:
		return "stop"
	case SeverityWarning:
		return "caution"
	case SeverityInfo:
		return "hint"
	default:
		return "note"
	}
}

// SeverityRank returns the ranking weight for a severity, lower is more
// severe. Unknown severities sort last.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	default:
		return 3
	}
}
