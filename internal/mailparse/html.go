package mailparse

import (
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// maxTokenBuf bounds a single markup token. Larger tokens make the
// tokenizer fail and the regexp fallback take over.
const maxTokenBuf = 1 << 20

// TagStripper turns markup into text: elements without readable content
// are dropped, tags become separators and entities are decoded.
type TagStripper interface {
	StripTags(markup string) (string, error)
}

// droppedElements are removed together with their content.
var droppedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"head":     true,
	"title":    true,
	"noscript": true,
	"template": true,
	"meta":     true,
	"link":     true,
}

var voidElements = map[string]bool{
	"meta": true,
	"link": true,
}

// blockElements are replaced by a line break instead of a space.
var blockElements = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "ul": true, "ol": true,
	"tr": true, "table": true, "blockquote": true, "pre": true, "hr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true,
	"dl": true, "dt": true, "dd": true,
}

func separator(tag string) string {
	if blockElements[tag] {
		return "\n"
	}
	return " "
}

// TokenStripper strips markup with the x/net/html tokenizer, which copes
// with unbalanced and unclosed tags.
type TokenStripper struct{}

func (TokenStripper) StripTags(markup string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(markup))
	z.SetMaxBuf(maxTokenBuf)

	var b strings.Builder
	b.Grow(len(markup) / 2)

	skipTag := ""
	depth := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", err
			}
			return b.String(), nil

		case html.TextToken:
			if depth == 0 {
				b.Write(z.Text())
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if depth > 0 {
				switch {
				case skipTag == "head" && tag == "body":
					// An unclosed head ends where the body starts.
					depth = 0
					b.WriteByte('\n')
				case tag == skipTag && tt == html.StartTagToken:
					depth++
				}
				continue
			}
			if droppedElements[tag] {
				if tt == html.StartTagToken && !voidElements[tag] {
					skipTag = tag
					depth = 1
				}
				continue
			}
			b.WriteString(separator(tag))

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if depth > 0 {
				if tag == skipTag {
					depth--
				}
				continue
			}
			b.WriteString(separator(tag))
		}
	}
}

var (
	commentPattern    = regexp.MustCompile(`(?s)<!--.*?-->`)
	droppedPatterns   = buildDroppedPatterns()
	voidDropPattern   = regexp.MustCompile(`(?i)<(meta|link)\b[^>]*>`)
	blockTagPattern   = regexp.MustCompile(`(?i)</?(br|p|div|li|ul|ol|tr|table|blockquote|pre|hr|h[1-6])\b[^>]*>`)
	anyTagPattern     = regexp.MustCompile(`<[^>]*>`)
	unclosedTagSuffix = regexp.MustCompile(`<[a-zA-Z/!][^>]*$`)
)

func buildDroppedPatterns() []*regexp.Regexp {
	tags := []string{"script", "style", "head", "title", "noscript", "template"}
	out := make([]*regexp.Regexp, 0, len(tags))
	for _, t := range tags {
		out = append(out, regexp.MustCompile(`(?is)<`+t+`\b[^>]*>.*?</`+t+`\s*>`))
	}
	return out
}

// RegexStripper is the fallback stripper. It never fails and runs in
// linear time on any input.
type RegexStripper struct{}

func (RegexStripper) StripTags(markup string) (string, error) {
	text := commentPattern.ReplaceAllString(markup, " ")
	for _, re := range droppedPatterns {
		text = re.ReplaceAllString(text, " ")
	}
	text = voidDropPattern.ReplaceAllString(text, "")
	text = blockTagPattern.ReplaceAllString(text, "\n")
	text = anyTagPattern.ReplaceAllString(text, " ")
	text = unclosedTagSuffix.ReplaceAllString(text, "")
	return html.UnescapeString(text), nil
}

// Converter renders markup as sanitized plain text.
type Converter struct {
	Primary   TagStripper
	Fallback  TagStripper
	Sanitizer *Sanitizer
}

// NewConverter returns a converter using the tokenizer with the regexp
// fallback.
func NewConverter(s *Sanitizer) *Converter {
	return &Converter{
		Primary:   TokenStripper{},
		Fallback:  RegexStripper{},
		Sanitizer: s,
	}
}

// ToText converts markup to text. It always returns some text for
// non-empty input that carries any.
func (c *Converter) ToText(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}

	text, err := c.Primary.StripTags(markup)
	if err != nil {
		text, err = c.Fallback.StripTags(markup)
		if err != nil {
			text, _ = RegexStripper{}.StripTags(markup)
		}
	}

	return c.Sanitizer.Clean(text)
}
