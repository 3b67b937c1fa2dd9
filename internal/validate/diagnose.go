package validate

import (
	"fmt"

	"cfnlsp/internal/diag"
	"cfnlsp/internal/lint"
	"cfnlsp/internal/metrics"
)

// Diagnose merges everything a run produced into one list: a spawn failure
// alone, or stderr warnings followed by the parsed findings (or a single
// parse failure). The second result is the metrics outcome label.
func Diagnose(out lint.Outcome, executable string) ([]diag.Diagnostic, string) {
	if !out.Spawned() {
		return []diag.Diagnostic{lint.SpawnFailure(executable, out.SpawnErr)}, metrics.OutcomeSpawnError
	}
	bag := diag.NewBag(len(out.Stderr))
	for _, chunk := range out.Stderr {
		if d, ok := lint.StderrNote(chunk); ok {
			bag.Add(d)
		}
	}
	findings, err := lint.Decode(out.Stdout)
	if err != nil {
		if out.Err != nil {
			err = fmt.Errorf("%w (%v)", err, out.Err)
		}
		bag.Add(lint.ParseFailure(err))
		return bag.Items(), metrics.OutcomeParseError
	}
	for i := range findings {
		bag.Add(lint.ToDiagnostic(findings[i]))
	}
	return bag.Items(), metrics.OutcomeOK
}
