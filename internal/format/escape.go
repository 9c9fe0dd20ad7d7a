package format

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// EscapeMarker is written before every reserved character.
const EscapeMarker = '\\'

// Ellipsis is appended to truncated text.
const Ellipsis = "…"

// Escape prefixes every rune of text found in reserved with EscapeMarker.
// It makes one pass over the input, so a marker already present is
// escaped again only when the marker itself is reserved.
func Escape(text, reserved string) string {
	if reserved == "" || !strings.ContainsAny(text, reserved) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(text)/8)
	for _, r := range text {
		if strings.ContainsRune(reserved, r) {
			b.WriteRune(EscapeMarker)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Truncate shortens text to at most max runes, ellipsis included. The cut
// moves back to a whitespace boundary when one lies in the last fifth of
// the window. max <= 0 disables the limit; a max too small to hold the
// ellipsis cuts hard without one.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}

	runes := []rune(text)
	window := max - utf8.RuneCountInString(Ellipsis)
	if window <= 0 {
		return string(runes[:max])
	}

	cut := window
	floor := window - window/5
	for i := window; i > floor; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}

	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + Ellipsis
}
