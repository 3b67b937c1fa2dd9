package diag

import "strings"

// Severity defines the importance of a diagnostic.
// Values follow the LSP DiagnosticSeverity numbering.
type Severity uint8

const (
	// SevError is for errors; it is also the fallback for unknown levels.
	SevError Severity = iota + 1
	// SevWarning is for warning diagnostics.
	SevWarning
	// SevInfo is for informational diagnostics.
	SevInfo
	// SevHint is for hints.
	SevHint
)

func (s Severity) String() string {
	switch s {
	case SevError:
		return "ERROR"
	case SevWarning:
		return "WARNING"
	case SevInfo:
		return "INFO"
	case SevHint:
		return "HINT"
	}
	return "UNKNOWN"
}

// Label returns the lower-case label used in terminal output.
func (s Severity) Label() string {
	return strings.ToLower(s.String())
}
