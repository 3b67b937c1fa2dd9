package diagfmt

import (
	"encoding/json"
	"io"

	"cfnlsp/internal/diag"
)

// LocationJSON is a 1-based source range.
type LocationJSON struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// DiagnosticJSON is one diagnostic. Location is omitted for diagnostics that
// are not tied to a position in the file.
type DiagnosticJSON struct {
	Severity string        `json:"severity"`
	Code     string        `json:"code,omitempty"`
	Source   string        `json:"source,omitempty"`
	Message  string        `json:"message"`
	Location *LocationJSON `json:"location,omitempty"`
}

// FileJSON groups the diagnostics of one file.
type FileJSON struct {
	Path        string           `json:"path"`
	Skipped     string           `json:"skipped,omitempty"`
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
}

// DiagnosticsOutput is the root of the JSON output.
type DiagnosticsOutput struct {
	Files    []FileJSON `json:"files"`
	Count    int        `json:"count"`
	Errors   int        `json:"errors"`
	Warnings int        `json:"warnings"`
}

// BuildJSON converts reports into the JSON output model.
func BuildJSON(reports []FileReport, opts JSONOpts) DiagnosticsOutput {
	out := DiagnosticsOutput{Files: make([]FileJSON, 0, len(reports))}
	var bag diag.Bag
	for _, r := range reports {
		file := FileJSON{
			Path:        formatPath(r.Path, opts.PathMode, opts.BaseDir),
			Skipped:     r.Skipped,
			Diagnostics: make([]DiagnosticJSON, 0, len(r.Diagnostics)),
		}
		for _, d := range r.Diagnostics {
			file.Diagnostics = append(file.Diagnostics, makeDiagnostic(d))
		}
		bag.AddAll(r.Diagnostics)
		out.Files = append(out.Files, file)
	}
	counts := bag.Counts()
	out.Count = bag.Len()
	out.Errors = counts[diag.SevError]
	out.Warnings = counts[diag.SevWarning]
	return out
}

func makeDiagnostic(d diag.Diagnostic) DiagnosticJSON {
	out := DiagnosticJSON{
		Severity: d.Severity.Label(),
		Code:     d.Code,
		Source:   d.Source,
		Message:  d.Message,
	}
	if !d.IsSentinel() {
		out.Location = &LocationJSON{
			StartLine: d.Range.Start.Line + 1,
			StartCol:  d.Range.Start.Character + 1,
			EndLine:   d.Range.End.Line + 1,
			EndCol:    d.Range.End.Character + 1,
		}
	}
	return out
}

// JSON writes reports as a single JSON document.
func JSON(w io.Writer, reports []FileReport, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	if opts.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(BuildJSON(reports, opts))
}
