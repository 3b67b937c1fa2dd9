package diag

func New(sev Severity, rng Range, source, code, msg string) Diagnostic {
	return Diagnostic{
		Range:    rng,
		Severity: sev,
		Code:     code,
		Source:   source,
		Message:  msg,
	}
}

// Sentinel builds a synthetic diagnostic on the first line of the document.
func Sentinel(sev Severity, source, msg string) Diagnostic {
	return New(sev, FirstLine(), source, "", msg)
}

// IsSentinel reports whether d covers exactly the synthetic first-line range.
func (d Diagnostic) IsSentinel() bool {
	return d.Range == FirstLine()
}
