package lint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cfnlsp/internal/diag"
)

// Source is the diagnostic source reported to editors.
const Source = "cfn-lint"

const messageTag = "[cfn-lint] "

// ErrNoOutput is returned by Decode for an empty payload.
var ErrNoOutput = errors.New("cfn-lint produced no output")

// Decode parses cfn-lint's JSON output. An empty array is a valid payload
// with no findings.
func Decode(payload []byte) ([]Finding, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, ErrNoOutput
	}
	var findings []Finding
	if err := json.Unmarshal(trimmed, &findings); err != nil {
		return nil, fmt.Errorf("failed to parse cfn-lint output: %w", err)
	}
	return findings, nil
}

// Parse converts cfn-lint output into diagnostics. A payload that cannot be
// decoded yields a single synthetic error diagnostic instead of an error.
func Parse(payload []byte) []diag.Diagnostic {
	findings, err := Decode(payload)
	if err != nil {
		return []diag.Diagnostic{ParseFailure(err)}
	}
	out := make([]diag.Diagnostic, 0, len(findings))
	for i := range findings {
		out = append(out, ToDiagnostic(findings[i]))
	}
	return out
}

// ToDiagnostic maps one finding to a zero-based diagnostic.
func ToDiagnostic(f Finding) diag.Diagnostic {
	rng := diag.Range{
		Start: diag.Position{
			Line:      zeroBased(f.Location.Start.LineNumber),
			Character: zeroBased(f.Location.Start.ColumnNumber),
		},
		End: diag.Position{
			Line:      zeroBased(f.Location.End.LineNumber),
			Character: zeroBased(f.Location.End.ColumnNumber),
		},
	}
	msg := messageTag + f.Rule.ID + ":" + f.Message
	return diag.New(SeverityFor(f.Level), rng, Source, f.Rule.ID, msg)
}

// SeverityFor maps a cfn-lint level label; anything unrecognised is an error.
func SeverityFor(level string) diag.Severity {
	switch level {
	case "Warning":
		return diag.SevWarning
	case "Informational":
		return diag.SevInfo
	case "Hint":
		return diag.SevHint
	default:
		return diag.SevError
	}
}

// ParseFailure reports undecodable output.
func ParseFailure(err error) diag.Diagnostic {
	return diag.Sentinel(diag.SevError, Source, messageTag+err.Error())
}

// SpawnFailure reports a validator that could not be started.
func SpawnFailure(executable string, err error) diag.Diagnostic {
	msg := fmt.Sprintf("Unable to start %s (%v). Is cfn-lint installed correctly?", executable, err)
	return diag.Sentinel(diag.SevError, Source, messageTag+msg)
}

// StderrNote turns a stderr chunk into a warning. Whitespace-only chunks
// produce no diagnostic.
func StderrNote(chunk string) (diag.Diagnostic, bool) {
	text := strings.TrimSpace(chunk)
	if text == "" {
		return diag.Diagnostic{}, false
	}
	return diag.Sentinel(diag.SevWarning, Source, messageTag+text), true
}

func zeroBased(n Number) int {
	if n <= 0 {
		return 0
	}
	return int(n) - 1
}
