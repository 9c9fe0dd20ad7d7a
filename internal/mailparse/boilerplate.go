package mailparse

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultBoilerplatePatterns are line patterns for common footers in
// English and Russian mail. They are matched against whole, already
// trimmed lines.
var DefaultBoilerplatePatterns = []string{
	`(?i)\bunsubscribe\b`,
	`(?i)отписаться|отказаться от рассылки`,
	`(?i)^(©|\(c\)|copyright\b)`,
	`(?i)^(sent from|get outlook for) `,
	`(?i)^отправлено (с|из) `,
	`(?i)(view|open) (this email |it )?in (your )?browser`,
	`(?i)открыть в браузере`,
}

var markupRemnantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<!--.*?-->`),
	regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`),
	regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`),
}

// BoilerplateFilter drops footer lines, signature blocks and markup
// remnants from plain text.
type BoilerplateFilter struct {
	lines []*regexp.Regexp
}

// NewBoilerplateFilter compiles the given line patterns. A nil slice uses
// DefaultBoilerplatePatterns.
func NewBoilerplateFilter(patterns []string) (*BoilerplateFilter, error) {
	if patterns == nil {
		patterns = DefaultBoilerplatePatterns
	}

	f := &BoilerplateFilter{lines: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling boilerplate pattern %q: %w", p, err)
		}
		f.lines = append(f.lines, re)
	}
	return f, nil
}

// Strip removes markup remnants, cuts the text at a signature delimiter
// and drops every line matching a boilerplate pattern.
func (f *BoilerplateFilter) Strip(text string) string {
	for _, re := range markupRemnantPatterns {
		text = re.ReplaceAllString(text, " ")
	}

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if i > 0 && (trimmed == "--" || trimmed == "-- ") {
			break
		}
		if f.matches(trimmed) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

func (f *BoilerplateFilter) matches(line string) bool {
	if line == "" {
		return false
	}
	for _, re := range f.lines {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
