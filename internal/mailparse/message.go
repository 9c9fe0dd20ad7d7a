package mailparse

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
)

// Part is one leaf of a message body.
type Part struct {
	// ContentType is the lowercased media type, e.g. "text/plain".
	ContentType string

	// Disposition is the lowercased Content-Disposition value, usually
	// "inline", "attachment" or empty.
	Disposition string

	// Charset is the declared charset parameter, if any.
	Charset string

	// Body holds the transfer-decoded content. Text parts whose charset is
	// known have already been converted to UTF-8.
	Body []byte
}

// IsAttachment reports whether the part is marked as an attachment.
func (p Part) IsAttachment() bool {
	return p.Disposition == "attachment"
}

// Text returns the body as a string, replacing invalid UTF-8 sequences.
func (p Part) Text() string {
	return strings.ToValidUTF8(string(p.Body), replacementChar)
}

// Fields holds the decoded header fields shown in a notification.
type Fields struct {
	From    string
	To      string
	Date    string
	Subject string
}

// Message is a parsed RFC 5322 message.
type Message struct {
	header message.Header
	Parts  []Part
}

// Parse reads a raw message and collects its leaf parts in structural
// order. Only an unreadable top-level header is an error; a broken
// multipart body keeps the parts read before the damage.
func Parse(raw []byte) (*Message, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !isRecoverable(err) {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	rootErr := err

	msg := &Message{header: entity.Header}

	walkErr := entity.Walk(func(_ []int, part *message.Entity, err error) error {
		if part == entity {
			err = rootErr
		}
		if err != nil && !isRecoverable(err) {
			return err
		}
		mediaType, _, _ := part.Header.ContentType()
		if strings.HasPrefix(strings.ToLower(mediaType), "multipart/") {
			return nil
		}
		msg.Parts = append(msg.Parts, readPart(part))
		return nil
	})
	if walkErr != nil && len(msg.Parts) == 0 {
		return nil, fmt.Errorf("walking message parts: %w", walkErr)
	}

	return msg, nil
}

func isRecoverable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

func readPart(e *message.Entity) Part {
	mediaType, params, _ := e.Header.ContentType()
	if mediaType == "" {
		mediaType = "text/plain"
	}
	disposition, _, _ := e.Header.ContentDisposition()

	// A read error keeps whatever was decoded before it.
	body, _ := io.ReadAll(e.Body)

	return Part{
		ContentType: strings.ToLower(mediaType),
		Disposition: strings.ToLower(disposition),
		Charset:     strings.ToLower(params["charset"]),
		Body:        body,
	}
}

// Header returns the decoded value of the named header field on a single
// line.
func (m *Message) Header(name string) string {
	return strings.Join(strings.Fields(DecodeHeader(m.header.Get(name))), " ")
}

// MessageID returns the Message-ID header as sent, or "".
func (m *Message) MessageID() string {
	return strings.TrimSpace(m.header.Get("Message-Id"))
}

// Fields returns the decoded From, To, Date and Subject headers.
func (m *Message) Fields() Fields {
	return Fields{
		From:    m.Header("From"),
		To:      m.Header("To"),
		Date:    m.Header("Date"),
		Subject: m.Header("Subject"),
	}
}
