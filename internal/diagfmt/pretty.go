package diagfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"cfnlsp/internal/diag"
)

type palette struct {
	path    *color.Color
	error   *color.Color
	warning *color.Color
	info    *color.Color
	hint    *color.Color
	gutter  *color.Color
	caret   *color.Color
	skipped *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		path:    color.New(color.Bold),
		error:   color.New(color.FgRed, color.Bold),
		warning: color.New(color.FgYellow, color.Bold),
		info:    color.New(color.FgCyan, color.Bold),
		hint:    color.New(color.FgGreen),
		gutter:  color.New(color.FgBlue),
		caret:   color.New(color.FgRed, color.Bold),
		skipped: color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.path, p.error, p.warning, p.info, p.hint, p.gutter, p.caret, p.skipped} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevWarning:
		return p.warning
	case diag.SevInfo:
		return p.info
	case diag.SevHint:
		return p.hint
	default:
		return p.error
	}
}

// Pretty writes, for each diagnostic:
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//
// followed by the source line and a ^~~~ underline when Excerpt is set.
// Diagnostics pinned to the synthetic first-line range get no excerpt.
func Pretty(w io.Writer, reports []FileReport, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for _, report := range reports {
		path := formatPath(report.Path, opts.PathMode, opts.BaseDir)
		if report.Skipped != "" {
			fmt.Fprintln(w, p.skipped.Sprintf("%s: skipped (%s)", path, report.Skipped))
			continue
		}
		var lines []string
		if opts.Excerpt {
			lines = strings.Split(report.Text, "\n")
		}
		for _, d := range report.Diagnostics {
			loc := fmt.Sprintf("%s:%d:%d", path, d.Range.Start.Line+1, d.Range.Start.Character+1)
			head := d.Severity.String()
			if d.Code != "" {
				head += " " + d.Code
			}
			fmt.Fprintf(w, "%s: %s: %s\n", p.path.Sprint(loc), p.severity(d.Severity).Sprint(head), d.Message)
			if opts.Excerpt && !d.IsSentinel() {
				writeExcerpt(w, p, lines, d.Range)
			}
		}
	}
}

func writeExcerpt(w io.Writer, p palette, lines []string, rng diag.Range) {
	if rng.Start.Line < 0 || rng.Start.Line >= len(lines) {
		return
	}
	line := strings.TrimRight(lines[rng.Start.Line], "\r")
	number := strconv.Itoa(rng.Start.Line + 1)
	pad := strings.Repeat(" ", len(number))
	fmt.Fprintf(w, " %s %s %s\n", p.gutter.Sprint(number), p.gutter.Sprint("|"), line)

	end := rng.End.Character
	if rng.End.Line != rng.Start.Line {
		end = -1
	}
	indent, marks := underline(line, rng.Start.Character, end)
	fmt.Fprintf(w, " %s %s %s%s\n", pad, p.gutter.Sprint("|"), indent, p.caret.Sprint(marks))
}

// underline returns the padding up to column start and the ^~~ marks that
// cover [start, end) in display cells. Tabs are kept so the marks line up
// under any tab width; end < 0 means to the end of the line.
func underline(line string, start, end int) (string, string) {
	runes := []rune(line)
	if start > len(runes) {
		start = len(runes)
	}
	if end < 0 || end > len(runes) {
		end = len(runes)
	}
	var indent strings.Builder
	for _, r := range runes[:start] {
		if r == '\t' {
			indent.WriteByte('\t')
			continue
		}
		indent.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}
	width := 0
	if end > start {
		width = runewidth.StringWidth(string(runes[start:end]))
	}
	if width < 1 {
		return indent.String(), "^"
	}
	return indent.String(), "^" + strings.Repeat("~", width-1)
}

// Summary renders "N errors, M warnings in K files"; zero counts are kept so
// the line is stable for scripts.
func Summary(reports []FileReport) string {
	var bag diag.Bag
	files := 0
	for _, r := range reports {
		if r.Skipped != "" {
			continue
		}
		files++
		bag.AddAll(r.Diagnostics)
	}
	counts := bag.Counts()
	return fmt.Sprintf("%s, %s in %s",
		plural(counts[diag.SevError], "error"),
		plural(counts[diag.SevWarning], "warning"),
		plural(files, "file"))
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
