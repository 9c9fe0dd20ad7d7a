package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	"IMAP_SERVER", "IMAP_PORT", "EMAIL_ACCOUNT", "EMAIL_PASSWORD", "IMAP_MAILBOX",
	"IMAP_TLS", "IMAP_BATCH_SIZE", "IMAP_TIMEOUT", "BOT_TOKEN", "CHAT_ID",
	"TELEGRAM_API_URL", "FORMAT_DIALECT", "FORMAT_LOCALE", "FORMAT_MAX_BODY_LENGTH",
	"FORMAT_RESERVED_CHARS", "FORMAT_STRIP_BOILERPLATE", "STATE_BACKEND", "STATE_PATH",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "METRICS_ADDR", "CHECK_INTERVAL",
}

// isolateEnv blanks every variable the loader reads. Empty variables
// count as unset.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range configEnv {
		t.Setenv(name, "")
	}
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("EMAIL_ACCOUNT", "me@yandex.ru")
	t.Setenv("EMAIL_PASSWORD", "app-password")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CHAT_ID", "-100200")
}

func TestLoadConfigDefaults(t *testing.T) {
	isolateEnv(t)
	setRequiredEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, "imap.yandex.ru", cfg.IMAP.Server)
	assert.Equal(t, 993, cfg.IMAP.Port)
	assert.True(t, cfg.IMAP.TLS)
	assert.Equal(t, "INBOX", cfg.IMAP.Mailbox)
	assert.Equal(t, 2*time.Minute, cfg.IMAPTimeout())
	assert.Equal(t, 300*time.Second, cfg.CheckInterval())
	assert.Equal(t, "markdown", cfg.Format.Dialect)
	assert.Equal(t, "ru", cfg.Format.Locale)
	assert.Equal(t, 1000, cfg.Format.MaxBodyLength)
	assert.Equal(t, "json", cfg.State.Backend)
	assert.Equal(t, "processed_emails.json", cfg.State.Path)
	assert.Equal(t, "logs/bot.log", cfg.Log.File)
	assert.Equal(t, "me@yandex.ru", cfg.IMAP.Account)
	assert.Equal(t, "-100200", cfg.Telegram.ChatID)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	isolateEnv(t)
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
imap:
  server: imap.example.com
  port: 143
  tls: false
format:
  dialect: markdownv2
  boilerplate_patterns: ["^--$"]
check_interval: 60
`), 0o600))

	t.Setenv("IMAP_PORT", "1143")
	t.Setenv("CHECK_INTERVAL", "30")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "imap.example.com", cfg.IMAP.Server)
	assert.Equal(t, 1143, cfg.IMAP.Port)
	assert.False(t, cfg.IMAP.TLS)
	assert.Equal(t, "markdownv2", cfg.Format.Dialect)
	assert.Equal(t, []string{"^--$"}, cfg.Format.BoilerplatePatterns)
	assert.Equal(t, 30*time.Second, cfg.CheckInterval())
}

func TestLoadConfigReportsMissingSettings(t *testing.T) {
	isolateEnv(t)
	t.Setenv("EMAIL_ACCOUNT", "me@yandex.ru")

	_, err := LoadConfig("", nil)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"EMAIL_PASSWORD", "BOT_TOKEN", "CHAT_ID"}, verr.Missing)
	assert.Contains(t, err.Error(), "missing required settings")
}

func TestLoadConfigReportsInvalidSettings(t *testing.T) {
	isolateEnv(t)
	setRequiredEnv(t)
	t.Setenv("FORMAT_DIALECT", "html")
	t.Setenv("STATE_BACKEND", "redis")

	_, err := LoadConfig("", nil)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, verr.Missing)
	assert.Len(t, verr.Invalid, 2)
	assert.Contains(t, err.Error(), "FORMAT_DIALECT=html")
}

func TestLoadConfigAsksSecretsLookup(t *testing.T) {
	isolateEnv(t)
	t.Setenv("EMAIL_ACCOUNT", "me@yandex.ru")
	t.Setenv("CHAT_ID", "42")

	var asked []string
	cfg, err := LoadConfig("", func(key string) (string, error) {
		asked = append(asked, key)
		return "from-keyring-" + key, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"imap-me@yandex.ru", "telegram-bot"}, asked)
	assert.Equal(t, "from-keyring-imap-me@yandex.ru", cfg.IMAP.Password)
	assert.Equal(t, "from-keyring-telegram-bot", cfg.Telegram.BotToken)
}

func TestLoadConfigSecretsLookupFailure(t *testing.T) {
	isolateEnv(t)
	t.Setenv("EMAIL_ACCOUNT", "me@yandex.ru")

	_, err := LoadConfig("", func(string) (string, error) {
		return "", errors.New("keyring locked")
	})
	assert.ErrorContains(t, err, "keyring locked")
}

func TestLoadConfigRejectsBrokenFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("imap: [unclosed"), 0o600))

	_, err := LoadConfig(path, nil)
	assert.ErrorContains(t, err, "reading config")
}

func TestSaveConfigOmitsSecrets(t *testing.T) {
	isolateEnv(t)
	setRequiredEnv(t)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	cfg.IMAP.Server = "imap.example.com"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "imap.example.com")
	assert.NotContains(t, string(data), "app-password")
	assert.NotContains(t, string(data), "123:abc")

	t.Setenv("EMAIL_PASSWORD", "")
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("EMAIL_ACCOUNT", "")
	t.Setenv("CHAT_ID", "")
	reloaded, err := LoadConfig(path, func(string) (string, error) { return "s", nil })
	require.NoError(t, err)
	assert.Equal(t, "imap.example.com", reloaded.IMAP.Server)
	assert.Equal(t, "me@yandex.ru", reloaded.IMAP.Account)
	assert.Equal(t, "-100200", reloaded.Telegram.ChatID)
}

func TestReadConfigSkipsValidation(t *testing.T) {
	isolateEnv(t)

	cfg, err := ReadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.IMAP.Account)
	assert.Error(t, cfg.Validate())
}
