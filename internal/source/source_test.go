package source

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailnotify/internal/mailparse"
)

func parse(t *testing.T, lines ...string) *mailparse.Message {
	t.Helper()
	msg, err := mailparse.Parse([]byte(strings.Join(lines, "\r\n")))
	require.NoError(t, err)
	return msg
}

func TestMessageIdentityPrefersMessageID(t *testing.T) {
	msg := parse(t, "Message-ID: <x1@example.com>", "From: a@x.com", "", "body")

	assert.Equal(t, "<x1@example.com>", MessageIdentity(msg, RawMessage{UID: 42}))
}

func TestMessageIdentityFallsBackToComposite(t *testing.T) {
	msg := parse(t,
		"From: =?UTF-8?B?0JjQstCw0L0=?= <ivan@example.ru>",
		"Date: Mon, 02 Jan 2006 15:04:05 +0000",
		"",
		"body",
	)

	got := MessageIdentity(msg, RawMessage{UID: 42, SeqNum: 3})
	assert.Equal(t, "uid:42|date:Mon, 02 Jan 2006 15:04:05 +0000|from:Иван <ivan@example.ru>", got)
}

func TestMessageIdentityStableAcrossSessions(t *testing.T) {
	msg := parse(t, "From: a@x.com", "", "body")

	first := MessageIdentity(msg, RawMessage{UID: 7, SeqNum: 1})
	second := MessageIdentity(msg, RawMessage{UID: 7, SeqNum: 5})
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, MessageIdentity(msg, RawMessage{UID: 8, SeqNum: 1}))
}

func TestMessageIdentityNilMessage(t *testing.T) {
	assert.Equal(t, "uid:9|date:|from:", MessageIdentity(nil, RawMessage{UID: 9}))
}

func TestIsAuthError(t *testing.T) {
	err := fmt.Errorf("cycle: %w", &AuthError{Server: "imap.example.com:993", Message: "bad password"})

	assert.True(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "imap.example.com:993")
	assert.False(t, IsAuthError(errors.New("connection reset")))
}
