package mailparse

// Extractor picks the most readable body of a message.
type Extractor struct {
	Sanitizer *Sanitizer
	Converter *Converter
}

// NewExtractor returns an extractor whose plain and converted markup
// output both go through s.
func NewExtractor(s *Sanitizer) *Extractor {
	return &Extractor{
		Sanitizer: s,
		Converter: NewConverter(s),
	}
}

// Extract returns the sanitized body text. Attachments are ignored; the
// first text/plain part wins over the first text/html part. A plain part
// that sanitizes to nothing does not hide a markup alternative. Returns ""
// when the message has no readable part.
func (e *Extractor) Extract(msg *Message) string {
	if msg == nil {
		return ""
	}

	var plain, markup string
	var havePlain, haveMarkup bool

	for _, p := range msg.Parts {
		if p.IsAttachment() {
			continue
		}
		switch p.ContentType {
		case "text/plain":
			if !havePlain {
				plain = e.Sanitizer.Clean(p.Text())
				havePlain = true
			}
		case "text/html":
			if !haveMarkup {
				markup = p.Text()
				haveMarkup = true
			}
		}
	}

	if havePlain && plain != "" {
		return plain
	}
	if haveMarkup {
		return e.Converter.ToText(markup)
	}
	return plain
}
