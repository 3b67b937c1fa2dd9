package diag

import "math"

// MaxColumn is the end character of a synthetic diagnostic. Editors clamp it
// to the actual line length.
const MaxColumn = math.MaxInt32

// Position is a zero-based line/character pair.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is one finding reported against a document. Code is empty for
// synthetic diagnostics that do not come from a cfn-lint rule.
type Diagnostic struct {
	Range    Range    `json:"range"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code,omitempty"`
	Source   string   `json:"source,omitempty"`
	Message  string   `json:"message"`
}

// FirstLine is the range used by synthetic diagnostics.
func FirstLine() Range {
	return Range{
		Start: Position{Line: 0, Character: 0},
		End:   Position{Line: 0, Character: MaxColumn},
	}
}
