package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckLineCarriesNameAndDetail(t *testing.T) {
	line := CheckLine(CheckOK, "imap", "me@imap.yandex.ru:993 INBOX: 3 messages, 1 unseen")

	assert.Contains(t, line, "✓")
	assert.Contains(t, line, "imap")
	assert.Contains(t, line, "1 unseen")
	assert.Contains(t, CheckLine(CheckFail, "telegram", "401 Unauthorized"), "✗")
	assert.Contains(t, CheckLine(CheckWarn, "state", "empty"), "!")
}

func TestReportIncludesEveryLine(t *testing.T) {
	out := Report("mailnotify check", "first", "second")

	assert.Contains(t, out, "mailnotify check")
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
}
