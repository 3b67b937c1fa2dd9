package lint

import (
	"strconv"
	"strings"
)

const (
	flagFormat       = "--format"
	flagIgnoreChecks = "--ignore-checks"
	flagAppendRules  = "--append-rules"
	flagOverrideSpec = "--override-spec"
	argSeparator     = "--"
)

// BuildArgs assembles the cfn-lint argument list for one file. Order matters:
// cfn-lint's rule flags are variadic, so the file path goes after "--".
func BuildArgs(s Settings, absPath string) []string {
	args := make([]string, 0, 4+2*(len(s.IgnoreRules)+len(s.AppendRules)))
	args = append(args, flagFormat, "json")
	for _, rule := range s.IgnoreRules {
		args = append(args, flagIgnoreChecks, rule)
	}
	for _, rule := range s.AppendRules {
		args = append(args, flagAppendRules, rule)
	}
	if s.OverrideSpecPath != "" {
		args = append(args, flagOverrideSpec, s.OverrideSpecPath)
	}
	return append(args, argSeparator, absPath)
}

// CommandLine renders an invocation for logs. The argument after "--" is
// double-quoted, as a shell would need it.
func CommandLine(executable string, args []string) string {
	var b strings.Builder
	b.WriteString(executable)
	quoteNext := false
	for _, arg := range args {
		b.WriteByte(' ')
		if quoteNext {
			b.WriteString(strconv.Quote(arg))
			continue
		}
		b.WriteString(arg)
		if arg == argSeparator {
			quoteNext = true
		}
	}
	return b.String()
}
