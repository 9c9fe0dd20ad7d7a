package mailparse

import (
	"strings"
	"unicode"
)

const replacementChar = "\uFFFD"

var newlineReplacer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\u2028", "\n",
	"\u2029", "\n",
)

// Sanitizer cleans free text for delivery. The zero value (and nil)
// applies only the base rules of Sanitize; setting Boilerplate adds the
// content-lossy boilerplate stage.
type Sanitizer struct {
	Boilerplate *BoilerplateFilter
}

// Clean runs Sanitize and, when configured, strips boilerplate and
// sanitizes the remainder again.
func (s *Sanitizer) Clean(text string) string {
	out := Sanitize(text)
	if s == nil || s.Boilerplate == nil || out == "" {
		return out
	}
	return Sanitize(s.Boilerplate.Strip(out))
}

// Sanitize removes invisible and control characters, collapses horizontal
// whitespace to single spaces, trims every line and keeps at most one
// blank line between paragraphs. The result is stable under repeated
// application.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ToValidUTF8(text, replacementChar)
	text = newlineReplacer.Replace(text)

	var b strings.Builder
	b.Grow(len(text))

	inSpace := false
	for _, r := range text {
		switch {
		case r == '\n':
			b.WriteByte('\n')
			inSpace = false
		case isHorizontalSpace(r):
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
		case isInvisible(r):
			// Dropped without breaking a whitespace run.
		default:
			b.WriteRune(r)
			inSpace = false
		}
	}

	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.Trim(line, " ")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}

	return strings.Trim(strings.Join(out, "\n"), " \n")
}

func isHorizontalSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\v', '\f', '\u0085', '\u00A0', '\u1680',
		'\u202F', '\u205F', '\u3000':
		return true
	}
	return r >= '\u2000' && r <= '\u200A'
}

// isInvisible reports zero-width, bidi and other format characters plus
// control characters other than the line feed.
func isInvisible(r rune) bool {
	switch {
	case r == '\u00AD', r == '\u180E', r == '\uFEFF':
		return true
	case r >= '\u200B' && r <= '\u200F':
		return true
	case r >= '\u202A' && r <= '\u202E':
		return true
	case r >= '\u2060' && r <= '\u2069':
		return true
	}
	return unicode.IsControl(r)
}
