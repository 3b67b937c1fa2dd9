package lint

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// Finding is one record of cfn-lint's JSON output.
type Finding struct {
	Filename string   `json:"Filename,omitempty"`
	Level    string   `json:"Level"`
	Message  string   `json:"Message"`
	Location Location `json:"Location"`
	Rule     Rule     `json:"Rule"`
}

// Location spans a finding; line and column numbers are 1-based and inclusive.
type Location struct {
	Start Point `json:"Start"`
	End   Point `json:"End"`
	Path  []any `json:"Path,omitempty"`
}

type Point struct {
	LineNumber   Number `json:"LineNumber"`
	ColumnNumber Number `json:"ColumnNumber"`
}

type Rule struct {
	ID               string `json:"Id"`
	Description      string `json:"Description,omitempty"`
	ShortDescription string `json:"ShortDescription,omitempty"`
	Source           string `json:"Source,omitempty"`
}

// Number decodes a JSON number or a numeric JSON string.
type Number int

func (n *Number) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		*n = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	if text == "" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid position %s: %w", data, err)
	}
	i, err := safecast.Conv[int](v)
	if err != nil {
		return fmt.Errorf("position %d out of range: %w", v, err)
	}
	*n = Number(i)
	return nil
}
