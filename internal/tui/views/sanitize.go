package views

import (
	"strings"
	"unicode/utf8"

	"github.com/rivo/tview"
)

// clean prepares user text for a dynamic-color view: it drops codepoints
// that break tcell cell widths and escapes color tags.
func clean(s string) string {
	return tview.Escape(sanitizeForTerminal(s))
}

// sanitizeForTerminal removes skin tone modifiers, zero width joiners and
// variation selectors so composed emoji render as their base glyph.
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isProblematicRune(r) {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

func isProblematicRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}

// oneLine collapses newlines so a preview fits a table cell.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
