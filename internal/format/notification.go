package format

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nhle/mailnotify/internal/mailparse"
)

// DefaultLocale is the locale of the built-in label table used when none is
// configured.
const DefaultLocale = "ru"

// DefaultMaxBodyLength caps the body of a notification in runes.
const DefaultMaxBodyLength = 1000

// MaxFieldLength caps each header field in runes before escaping.
const MaxFieldLength = 256

// MaxMessageLength is the Telegram limit on the text of one message.
const MaxMessageLength = 4096

const headerIcon = "📨"

// Labels are the fixed strings of a notification.
type Labels struct {
	Title     string
	From      string
	To        string
	Date      string
	Subject   string
	Body      string
	NoSubject string
	EmptyBody string
}

var labelsByLocale = map[string]Labels{
	"ru": {
		Title:     "Новое письмо",
		From:      "От:",
		To:        "Кому:",
		Date:      "Дата:",
		Subject:   "Тема:",
		Body:      "Содержимое:",
		NoSubject: "(Без темы)",
		EmptyBody: "(пустое письмо или только вложения)",
	},
	"en": {
		Title:     "New email",
		From:      "From:",
		To:        "To:",
		Date:      "Date:",
		Subject:   "Subject:",
		Body:      "Content:",
		NoSubject: "(No subject)",
		EmptyBody: "(empty message or attachments only)",
	},
}

// LabelsFor returns the label table of a locale. The empty locale selects
// DefaultLocale.
func LabelsFor(locale string) (Labels, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	l, ok := labelsByLocale[strings.ToLower(locale)]
	if !ok {
		return Labels{}, fmt.Errorf("no labels for locale %q", locale)
	}
	return l, nil
}

// Notification is the text of one chat message and the dialect it is
// written in.
type Notification struct {
	Text    string
	Dialect Dialect
}

// Formatter assembles notifications.
type Formatter struct {
	Labels Labels

	// MaxBodyLength caps the body in runes before escaping. Zero or less
	// disables the cap.
	MaxBodyLength int
}

// NewFormatter returns a formatter for the given locale and body cap.
func NewFormatter(locale string, maxBodyLength int) (*Formatter, error) {
	labels, err := LabelsFor(locale)
	if err != nil {
		return nil, err
	}
	return &Formatter{Labels: labels, MaxBodyLength: maxBodyLength}, nil
}

// Build renders header fields and body in d. Fields appear in a fixed
// order: sender, recipient, date, subject, body. An empty subject or body is
// replaced by its placeholder label; an empty date is left out. Header
// fields are cut to MaxFieldLength and the body is shortened further when
// the text would exceed MaxMessageLength.
func (f *Formatter) Build(fields mailparse.Fields, body string, d Dialect) Notification {
	l := f.Labels
	if l == (Labels{}) {
		l = labelsByLocale[DefaultLocale]
	}

	subject := strings.TrimSpace(fields.Subject)
	if subject == "" {
		subject = l.NoSubject
	}

	body = strings.TrimSpace(body)
	if body == "" {
		body = l.EmptyBody
	} else {
		body = Truncate(body, f.MaxBodyLength)
	}

	var b strings.Builder
	b.WriteString(headerIcon + " " + d.Bold(d.Escape(l.Title)) + "\n\n")
	writeField(&b, d, l.From, fields.From)
	writeField(&b, d, l.To, fields.To)
	if fields.Date != "" {
		writeField(&b, d, l.Date, fields.Date)
	}
	writeField(&b, d, l.Subject, subject)
	b.WriteString("\n" + d.Bold(d.Escape(l.Body)) + "\n")

	budget := MaxMessageLength - utf8.RuneCountInString(b.String())
	b.WriteString(fitBody(body, budget, d))

	return Notification{Text: b.String(), Dialect: d}
}

func writeField(b *strings.Builder, d Dialect, label, value string) {
	b.WriteString(d.Bold(d.Escape(label)))
	b.WriteString(" ")
	b.WriteString(d.Escape(Truncate(value, MaxFieldLength)))
	b.WriteString("\n")
}

// fitBody escapes body, cutting the unescaped text until the result fits in
// budget runes.
func fitBody(body string, budget int, d Dialect) string {
	escaped := d.Escape(body)
	if budget <= 0 {
		return ""
	}
	limit := utf8.RuneCountInString(body)
	for {
		over := utf8.RuneCountInString(escaped) - budget
		if over <= 0 {
			return escaped
		}
		limit -= over
		if limit <= 0 {
			return ""
		}
		escaped = d.Escape(Truncate(body, limit))
	}
}
