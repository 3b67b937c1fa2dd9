package lint

import "slices"

// DefaultExecutable is used when no executable path is configured.
const DefaultExecutable = "cfn-lint"

// Settings configures one cfn-lint invocation.
type Settings struct {
	ExecutablePath   string
	IgnoreRules      []string
	AppendRules      []string
	OverrideSpecPath string
}

// DefaultSettings returns the settings used before any configuration arrives.
func DefaultSettings() Settings {
	return Settings{ExecutablePath: DefaultExecutable}
}

// Normalized fills defaults and drops blank rule ids. The receiver is not
// modified; slices of the result are never shared with it.
func (s Settings) Normalized() Settings {
	out := Settings{
		ExecutablePath:   s.ExecutablePath,
		IgnoreRules:      nonBlank(s.IgnoreRules),
		AppendRules:      nonBlank(s.AppendRules),
		OverrideSpecPath: s.OverrideSpecPath,
	}
	if out.ExecutablePath == "" {
		out.ExecutablePath = DefaultExecutable
	}
	return out
}

// WithFallbackExecutable fills an empty ExecutablePath with exe.
func (s Settings) WithFallbackExecutable(exe string) Settings {
	if s.ExecutablePath == "" {
		s.ExecutablePath = exe
	}
	return s
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	s.IgnoreRules = slices.Clone(s.IgnoreRules)
	s.AppendRules = slices.Clone(s.AppendRules)
	return s
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
