// Package validate coordinates detection, the cfn-lint process and result
// parsing for documents, one run per document at a time.
//
// Each document URI is either idle or running. A trigger for a running URI is
// dropped, not queued. Every run ends with exactly one publish for its URI,
// whatever went wrong: spawn failures, stderr output and undecodable stdout
// all become diagnostics.
package validate
