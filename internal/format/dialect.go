// Package format renders a parsed message into chat notification text.
package format

import (
	"fmt"
	"strings"
)

// Dialect is a chat markup dialect.
type Dialect struct {
	// Name is the value sent as the Telegram parse_mode. Empty means plain
	// text.
	Name string

	// Reserved lists the characters that must be escaped to render
	// literally.
	Reserved string

	// BoldMarker wraps text to render it bold.
	BoldMarker string
}

var (
	// Markdown is Telegram's legacy Markdown. Only the characters that open
	// an entity are reserved; brackets and parentheses are left alone since
	// they are common in mail subjects and render fine unescaped.
	Markdown = Dialect{Name: "Markdown", Reserved: "_*`[", BoldMarker: "*"}

	// MarkdownV2 reserves every character Telegram documents for it.
	MarkdownV2 = Dialect{Name: "MarkdownV2", Reserved: "_*[]()~`>#+-=|{}.!\\", BoldMarker: "*"}

	// Plain sends text without a parse mode.
	Plain = Dialect{}
)

// DialectByName resolves a configured dialect name. The empty name and
// "plain" both select Plain.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "markdown":
		return Markdown, nil
	case "markdownv2":
		return MarkdownV2, nil
	case "", "plain", "none":
		return Plain, nil
	default:
		return Dialect{}, fmt.Errorf("unknown markup dialect %q", name)
	}
}

// WithReserved returns a copy of d with its reserved set replaced. An empty
// set keeps the dialect's own.
func (d Dialect) WithReserved(chars string) Dialect {
	if chars != "" {
		d.Reserved = chars
	}
	return d
}

// IsPlain reports whether d sends no parse mode.
func (d Dialect) IsPlain() bool {
	return d.Name == ""
}

func (d Dialect) Escape(text string) string {
	return Escape(text, d.Reserved)
}

// Bold wraps already escaped text in the dialect's bold marker.
func (d Dialect) Bold(text string) string {
	if d.BoldMarker == "" {
		return text
	}
	return d.BoldMarker + text + d.BoldMarker
}

func (d Dialect) String() string {
	if d.IsPlain() {
		return "plain"
	}
	return d.Name
}
