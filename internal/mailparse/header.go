package mailparse

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"mime"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func init() {
	// Aliases seen in Russian and Chinese mailboxes that go-message does
	// not resolve by these names.
	charset.RegisterEncoding("gbk", simplifiedchinese.GBK)
	charset.RegisterEncoding("cp1251", charmap.Windows1251)
	charset.RegisterEncoding("cp866", charmap.CodePage866)
}

// encodedWordPattern matches a single RFC 2047 encoded-word.
var encodedWordPattern = regexp.MustCompile(`=\?([^?\s]+)\?([bBqQ])\?([^?\s]*)\?=`)

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

var errMalformedWord = errors.New("malformed encoded-word")

// DecodeHeader turns a raw header value into readable text. Encoded-words
// are decoded with their declared charset; when that fails the payload is
// read as UTF-8 with invalid bytes replaced. Plain segments are returned
// unchanged. It never fails.
func DecodeHeader(raw string) string {
	if raw == "" {
		return ""
	}

	matches := encodedWordPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw))

	last := 0
	for i, m := range matches {
		gap := raw[last:m[0]]
		// Whitespace between two adjacent encoded-words is not part of
		// the text (RFC 2047 section 6.2).
		if i == 0 || strings.TrimSpace(gap) != "" {
			b.WriteString(gap)
		}
		b.WriteString(decodeWord(
			raw[m[0]:m[1]], raw[m[4]:m[5]], raw[m[6]:m[7]],
		))
		last = m[1]
	}
	b.WriteString(raw[last:])

	return b.String()
}

// decodeWord decodes one encoded-word, falling back to permissive UTF-8
// when the charset is unknown or the conversion fails.
func decodeWord(word, encoding, text string) string {
	if decoded, err := wordDecoder.Decode(word); err == nil {
		return strings.ToValidUTF8(decoded, replacementChar)
	}

	payload, err := decodeWordPayload(encoding, text)
	if err != nil {
		return word
	}
	return strings.ToValidUTF8(string(payload), replacementChar)
}

func decodeWordPayload(encoding, text string) ([]byte, error) {
	switch strings.ToUpper(encoding) {
	case "B":
		if b, err := base64.StdEncoding.DecodeString(text); err == nil {
			return b, nil
		}
		return base64.RawStdEncoding.DecodeString(strings.TrimRight(text, "="))
	case "Q":
		return decodeQ(text)
	default:
		return nil, errMalformedWord
	}
}

// decodeQ implements the "Q" encoding of RFC 2047 section 4.2.
func decodeQ(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '_':
			out = append(out, ' ')
		case '=':
			if i+2 >= len(s) {
				return nil, errMalformedWord
			}
			b, err := hex.DecodeString(s[i+1 : i+3])
			if err != nil {
				return nil, errMalformedWord
			}
			out = append(out, b[0])
			i += 2
		default:
			out = append(out, c)
		}
	}
	return out, nil
}
