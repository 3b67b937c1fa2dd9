package lsp

import "unicode/utf8"

// applyChanges replays content changes in order. A change without a range
// replaces the whole text.
func applyChanges(text string, changes []textDocumentContentChangeEvent) string {
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}
		start := clampOffset(offsetForPosition(text, change.Range.Start), 0, len(text))
		end := clampOffset(offsetForPosition(text, change.Range.End), start, len(text))
		text = text[:start] + change.Text + text[end:]
	}
	return text
}

func clampOffset(off, lo, hi int) int {
	if off < lo {
		return lo
	}
	if off > hi {
		return hi
	}
	return off
}

// offsetForPosition converts a UTF-16 based LSP position into a byte offset.
// Positions past the end of a line snap to the line end.
func offsetForPosition(text string, pos position) int {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	i := 0
	for line := 0; line < pos.Line; i++ {
		if i >= len(text) {
			return len(text)
		}
		if text[i] == '\n' {
			line++
		}
	}
	units := 0
	for i < len(text) && text[i] != '\n' && units < pos.Character {
		r, size := utf8.DecodeRuneInString(text[i:])
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		if units+need > pos.Character {
			break
		}
		units += need
		i += size
	}
	return i
}
