package format

import (
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// Len returns the length of text in characters (code points), which is how
// the supported platforms count their limits.
func Len(text string) int { return utf8.RuneCountInString(text) }

// Truncate shortens text to at most max characters. Text that already fits
// is returned unchanged. The cut always falls on a grapheme cluster
// boundary, so neither a multi-byte character nor a combined emoji is split.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if Len(text) <= max {
		return text
	}

	var (
		b     strings.Builder
		count int
	)
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		n := len(g.Runes())
		if count+n > max {
			break
		}
		b.WriteString(g.Str())
		count += n
	}
	return b.String()
}

// TruncateWithEllipsis works like Truncate but marks a shortened text with
// ellipsis. The result, ellipsis included, never exceeds max characters.
func TruncateWithEllipsis(text string, max int, ellipsis string) string {
	if Len(text) <= max {
		return text
	}
	room := max - Len(ellipsis)
	if room <= 0 {
		return Truncate(text, max)
	}
	return strings.TrimRight(Truncate(text, room), " \t\n") + ellipsis
}
