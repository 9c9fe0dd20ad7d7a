package format

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		reserved string
		want     string
	}{
		{name: "nothing reserved", text: "a_b*c", reserved: "", want: "a_b*c"},
		{name: "no reserved chars present", text: "hello", reserved: Markdown.Reserved, want: "hello"},
		{name: "legacy markdown", text: "my_report *final* `x` [link]", reserved: Markdown.Reserved, want: `my\_report \*final\* \` + "`x\\`" + ` \[link]`},
		{name: "legacy leaves dots", text: "a@x.com (work)", reserved: Markdown.Reserved, want: "a@x.com (work)"},
		{name: "markdown v2", text: "a@x.com (work)!", reserved: MarkdownV2.Reserved, want: `a@x\.com \(work\)\!`},
		{name: "v2 escapes the marker", text: `C:\dir`, reserved: MarkdownV2.Reserved, want: `C:\\dir`},
		{name: "unicode untouched", text: "Привет_мир", reserved: Markdown.Reserved, want: `Привет\_мир`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Escape(tt.text, tt.reserved))
		})
	}
}

// assertFullyEscaped fails when a reserved rune in out is not preceded by
// the escape marker.
func assertFullyEscaped(t *testing.T, out, reserved string) {
	t.Helper()
	rs := []rune(out)
	for i := 0; i < len(rs); i++ {
		if rs[i] == EscapeMarker && i+1 < len(rs) && strings.ContainsRune(reserved, rs[i+1]) {
			i++
			continue
		}
		assert.False(t, strings.ContainsRune(reserved, rs[i]), "unescaped %q at %d in %q", rs[i], i, out)
	}
}

func TestEscapeLeavesNoReservedCharUnescaped(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"_*`[]()~>#+-=|{}.!",
		`back\slash_and*star`,
		"__double__ **bold**",
		"Тема: отчёт [черновик] v1.2",
	}

	for _, d := range []Dialect{Markdown, MarkdownV2} {
		for _, in := range inputs {
			assertFullyEscaped(t, Escape(in, d.Reserved), d.Reserved)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{name: "fits", text: "short", max: 10, want: "short"},
		{name: "exact fit", text: "exactly10!", max: 10, want: "exactly10!"},
		{name: "no limit", text: "anything", max: 0, want: "anything"},
		{name: "cut at word boundary", text: "hello world foo", max: 12, want: "hello world…"},
		{name: "hard cut without nearby space", text: "abcdefghijklmnop", max: 10, want: "abcdefghi…"},
		{name: "space too far back", text: "ab cdefghijklmnop", max: 10, want: "ab cdefgh…"},
		{name: "counts runes", text: "Привет мир и ещё", max: 12, want: "Привет мир…"},
		{name: "max too small for ellipsis", text: "hello", max: 1, want: "h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.text, tt.max))
		})
	}
}

func TestTruncateProperties(t *testing.T) {
	texts := []string{
		"",
		"one",
		strings.Repeat("word ", 300),
		strings.Repeat("x", 2500),
		strings.Repeat("слово ", 200),
		"line one\n\nline two\n\nline three",
	}
	limits := []int{1, 2, 5, 17, 100, 1000}

	for _, text := range texts {
		for _, n := range limits {
			out := Truncate(text, n)
			require.LessOrEqual(t, utf8.RuneCountInString(out), n+utf8.RuneCountInString(Ellipsis))
			assert.Equal(t, out, Truncate(out, n), "truncate must be idempotent for n=%d", n)
			if utf8.RuneCountInString(text) <= n {
				assert.Equal(t, text, out)
			}
		}
	}
}
