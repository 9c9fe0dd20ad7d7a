package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/mailnotify/internal/mailparse"
)

// AuthError indicates that the mail server rejected the credentials.
type AuthError struct {
	Server  string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Server, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// RawMessage is one message fetched without touching its flags.
type RawMessage struct {
	// UID is the message UID in the selected mailbox.
	UID uint32

	// SeqNum is the sequence number at fetch time. It is only meaningful
	// for the session that produced it.
	SeqNum uint32

	// Raw is the full RFC 5322 message.
	Raw []byte
}

// FetchFailure records a message that was found but could not be fetched.
type FetchFailure struct {
	UID uint32
	Err error
}

// FetchResult holds one batch of unseen messages in ascending UID order.
type FetchResult struct {
	Messages []RawMessage
	Failures []FetchFailure
}

// Mailbox is a mail transport that can list unseen messages.
type Mailbox interface {
	// FetchUnseen runs one session and returns the unseen messages of the
	// configured folder. Read flags are left untouched. An error means the
	// whole session failed.
	FetchUnseen(ctx context.Context) (*FetchResult, error)

	// Validate logs in and selects the folder, returning a short status
	// line on success.
	Validate(ctx context.Context) (string, error)
}

// MessageIdentity returns the key used to remember a message across
// cycles: its Message-ID header, or a composite of UID, date and sender
// when the header is missing.
func MessageIdentity(msg *mailparse.Message, raw RawMessage) string {
	if msg != nil {
		if id := msg.MessageID(); id != "" {
			return id
		}
	}

	var date, from string
	if msg != nil {
		date = msg.Header("Date")
		from = msg.Header("From")
	}
	return strings.Join([]string{
		fmt.Sprintf("uid:%d", raw.UID),
		"date:" + date,
		"from:" + from,
	}, "|")
}
