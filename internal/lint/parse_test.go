package lint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfnlsp/internal/diag"
)

func TestParseStringPositions(t *testing.T) {
	payload := `[{"Location":{"Start":{"LineNumber":"5","ColumnNumber":"3"},"End":{"LineNumber":"5","ColumnNumber":"10"}},"Level":"Warning","Rule":{"Id":"E1234"},"Message":"bad value"}]`
	got := Parse([]byte(payload))
	require.Len(t, got, 1)
	d := got[0]
	assert.Equal(t, diag.Position{Line: 4, Character: 2}, d.Range.Start)
	assert.Equal(t, diag.Position{Line: 4, Character: 9}, d.Range.End)
	assert.Equal(t, diag.SevWarning, d.Severity)
	assert.True(t, strings.HasSuffix(d.Message, "E1234:bad value"), d.Message)
	assert.Equal(t, "[cfn-lint] E1234:bad value", d.Message)
	assert.Equal(t, "E1234", d.Code)
	assert.Equal(t, Source, d.Source)
}

func TestParseNumericPositions(t *testing.T) {
	payload := `[
  {
    "Filename": "template.yaml",
    "Level": "Error",
    "Location": {
      "Start": {"LineNumber": 12, "ColumnNumber": 7},
      "End": {"LineNumber": 13, "ColumnNumber": 1},
      "Path": ["Resources", "Bucket", "Properties", 0]
    },
    "Message": "Property is required",
    "Rule": {"Id": "E3002", "Description": "desc", "ShortDescription": "short", "Source": "https://example.com"}
  }
]`
	findings, err := Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "template.yaml", findings[0].Filename)
	assert.Equal(t, Number(12), findings[0].Location.Start.LineNumber)

	got := Parse([]byte(payload))
	require.Len(t, got, 1)
	assert.Equal(t, diag.Range{
		Start: diag.Position{Line: 11, Character: 6},
		End:   diag.Position{Line: 12, Character: 0},
	}, got[0].Range)
	assert.Equal(t, diag.SevError, got[0].Severity)
}

func TestParseEmptyArray(t *testing.T) {
	got := Parse([]byte("[]\n"))
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestParseMalformed(t *testing.T) {
	for _, payload := range []string{"not json", "{", `{"Level":"Error"}`, "", "   \n"} {
		got := Parse([]byte(payload))
		require.Len(t, got, 1, "payload %q", payload)
		d := got[0]
		assert.Equal(t, diag.SevError, d.Severity)
		assert.Equal(t, 0, d.Range.Start.Line)
		assert.Equal(t, 0, d.Range.End.Line)
		assert.Equal(t, diag.MaxColumn, d.Range.End.Character)
		assert.True(t, strings.HasPrefix(d.Message, "[cfn-lint] "), d.Message)
	}
}

func TestParseInvalidPositionIsMalformed(t *testing.T) {
	payload := `[{"Location":{"Start":{"LineNumber":"five","ColumnNumber":"3"},"End":{"LineNumber":"5","ColumnNumber":"10"}},"Level":"Warning","Rule":{"Id":"E1"},"Message":"m"}]`
	got := Parse([]byte(payload))
	require.Len(t, got, 1)
	assert.True(t, got[0].IsSentinel())
	assert.Contains(t, got[0].Message, "invalid position")
}

func TestDecodeEmptyOutput(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrNoOutput)
}

func TestSeverityFor(t *testing.T) {
	cases := map[string]diag.Severity{
		"Warning":       diag.SevWarning,
		"Informational": diag.SevInfo,
		"Hint":          diag.SevHint,
		"Error":         diag.SevError,
		"Critical":      diag.SevError,
		"":              diag.SevError,
		"warning":       diag.SevError,
	}
	for level, want := range cases {
		assert.Equal(t, want, SeverityFor(level), "level %q", level)
	}
}

func TestZeroBasedClampsAtZero(t *testing.T) {
	d := ToDiagnostic(Finding{Level: "Hint", Rule: Rule{ID: "I1"}, Message: "m"})
	assert.Equal(t, diag.Position{}, d.Range.Start)
	assert.Equal(t, diag.SevHint, d.Severity)
}

func TestStderrNote(t *testing.T) {
	d, ok := StderrNote("  deprecated option\n")
	require.True(t, ok)
	assert.Equal(t, diag.SevWarning, d.Severity)
	assert.Equal(t, "[cfn-lint] deprecated option", d.Message)
	assert.True(t, d.IsSentinel())

	_, ok = StderrNote("\n\t ")
	assert.False(t, ok)
}

func TestSpawnFailureMessage(t *testing.T) {
	d := SpawnFailure("cfn-lint", assert.AnError)
	assert.Equal(t, diag.SevError, d.Severity)
	assert.Contains(t, d.Message, "Unable to start cfn-lint")
	assert.Contains(t, d.Message, assert.AnError.Error())
}
