package dialect

import "fmt"

// Kind is the template dialect a document was classified as.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindCloudFormation
	KindServerless
)

func (k Kind) String() string {
	switch k {
	case KindCloudFormation:
		return "cloudformation"
	case KindServerless:
		return "serverless"
	default:
		return "unknown"
	}
}

func (k Kind) GoString() string {
	return fmt.Sprintf("Kind(%s)", k.String())
}
