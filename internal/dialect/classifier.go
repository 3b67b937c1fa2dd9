package dialect

// Classification is the detector verdict together with the evidence behind it.
type Classification struct {
	Kind     Kind
	Evidence *Evidence
}

// InScope reports whether the document should be validated.
func (c Classification) InScope() bool {
	return c.Kind == KindCloudFormation
}

// Classify applies the detection rules in order: the format version marker is
// authoritative; otherwise a Resources block with a namespaced resource type
// qualifies unless the Serverless resources/provider pair is present.
func Classify(text string) Classification {
	e := Observe(text)
	if e.Has(SignalFormatVersion) {
		return Classification{Kind: KindCloudFormation, Evidence: e}
	}
	if !e.Has(SignalResources) || !e.Has(SignalResourceType) {
		return Classification{Kind: KindUnknown, Evidence: e}
	}
	if e.Has(SignalServerlessResources) && e.Has(SignalServerlessProvider) {
		return Classification{Kind: KindServerless, Evidence: e}
	}
	return Classification{Kind: KindCloudFormation, Evidence: e}
}

// IsTemplate reports whether text looks like a CloudFormation template.
func IsTemplate(text string) bool {
	return Classify(text).InScope()
}
