// Package diag defines the normalized diagnostic model handed to editors.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Range – zero-based start/end positions (line, character).
//   - Severity – LSP numbering: Error=1, Warning=2, Information=3, Hint=4.
//   - Code – rule identifier reported by the validator, if any.
//   - Source – the tool that produced the finding.
//   - Message – human oriented text, already prefixed with the source tag.
//
// Diagnostics are plain values. They are built once per validation run and
// never mutated afterwards; collect them in a Bag and hand Items() to the
// publisher.
//
// # Synthetic diagnostics
//
// Failures that have no source location (the validator could not be started,
// its output could not be decoded, it wrote to stderr) are reported as
// synthetic diagnostics spanning the whole first line, see Sentinel. This
// keeps every failure mode observable in the same shape as a real finding.
package diag
