package dialect

import "regexp"

type pattern struct {
	id     SignalID
	re     *regexp.Regexp
	reason string
}

var patterns = []pattern{
	{
		id:     SignalFormatVersion,
		re:     regexp.MustCompile(`(?i)"?AWSTemplateFormatVersion"?`),
		reason: "format version marker `AWSTemplateFormatVersion`",
	},
	{
		id:     SignalResources,
		re:     regexp.MustCompile(`"?Resources"?\s*:`),
		reason: "`Resources:` block",
	},
	{
		id:     SignalResourceType,
		re:     regexp.MustCompile(`"?Type"?\s*:\s*["']?(AWS|Custom)::`),
		reason: "resource `Type` in the AWS:: or Custom:: namespace",
	},
	{
		id:     SignalServerlessResources,
		re:     regexp.MustCompile(`"?resources"?\s*:`),
		reason: "lower-case `resources:` key",
	},
	{
		id:     SignalServerlessProvider,
		re:     regexp.MustCompile(`"?provider"?\s*:`),
		reason: "`provider:` key",
	},
}
