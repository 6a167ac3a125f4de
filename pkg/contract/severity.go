package contract

import "strings"

// Severity indicates the importance of a recorded result.
type Severity int

// Severity levels for results.
const (
	// SeverityError indicates a violation that should fail the run.
	SeverityError Severity = iota
	// SeverityWarning indicates a violation that should be reviewed.
	SeverityWarning
	// SeverityInfo indicates informational feedback.
	SeverityInfo
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// AnnotationLevel returns the GitHub check annotation level for the
// severity.
func (s Severity) AnnotationLevel() string {
	switch s {
	case SeverityError:
		return "failure"
	case SeverityInfo:
		return "notice"
	default:
		return "warning"
	}
}

// ParseSeverity converts a string to a Severity value.
// Returns the severity and true if valid, or SeverityWarning and false
// if invalid.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(s) {
	case "error":
		return SeverityError, true
	case "warning", "warn":
		return SeverityWarning, true
	case "info":
		return SeverityInfo, true
	default:
		return SeverityWarning, false
	}
}
