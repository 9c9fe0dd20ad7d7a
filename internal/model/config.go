package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/nhle/mailnotify/internal/credential"
)

// IMAPConfig holds the mailbox connection settings.
type IMAPConfig struct {
	Server   string `mapstructure:"server" env:"IMAP_SERVER" validate:"required"`
	Port     int    `mapstructure:"port" env:"IMAP_PORT" validate:"min=1,max=65535"`
	Account  string `mapstructure:"account" env:"EMAIL_ACCOUNT" validate:"required"`
	Password string `mapstructure:"password" env:"EMAIL_PASSWORD" validate:"required"`

	// Mailbox is the watched folder.
	Mailbox string `mapstructure:"mailbox" env:"IMAP_MAILBOX"`

	// TLS selects implicit TLS; false upgrades with STARTTLS.
	TLS bool `mapstructure:"tls" env:"IMAP_TLS"`

	// BatchSize caps the messages fetched per cycle, newest first. Zero
	// fetches every unseen message.
	BatchSize int `mapstructure:"batch_size" env:"IMAP_BATCH_SIZE" validate:"min=0"`

	// TimeoutSec bounds one IMAP session.
	TimeoutSec int `mapstructure:"timeout_sec" env:"IMAP_TIMEOUT" validate:"min=0"`
}

// TelegramConfig holds the Bot API settings.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" env:"BOT_TOKEN" validate:"required"`
	ChatID   string `mapstructure:"chat_id" env:"CHAT_ID" validate:"required"`
	APIURL   string `mapstructure:"api_url" env:"TELEGRAM_API_URL" validate:"omitempty,url"`
}

// FormatConfig controls how notifications are rendered.
type FormatConfig struct {
	// Dialect is markdown, markdownv2 or plain.
	Dialect string `mapstructure:"dialect" env:"FORMAT_DIALECT" validate:"oneof=markdown markdownv2 plain"`
	Locale  string `mapstructure:"locale" env:"FORMAT_LOCALE" validate:"oneof=ru en"`

	MaxBodyLength int `mapstructure:"max_body_length" env:"FORMAT_MAX_BODY_LENGTH" validate:"min=0"`

	// ReservedChars overrides the dialect's reserved character set.
	ReservedChars string `mapstructure:"reserved_chars" env:"FORMAT_RESERVED_CHARS"`

	StripBoilerplate    bool     `mapstructure:"strip_boilerplate" env:"FORMAT_STRIP_BOILERPLATE"`
	BoilerplatePatterns []string `mapstructure:"boilerplate_patterns"`
}

// StateConfig selects where processed message ids are kept.
type StateConfig struct {
	Backend string `mapstructure:"backend" env:"STATE_BACKEND" validate:"oneof=json sqlite"`
	Path    string `mapstructure:"path" env:"STATE_PATH" validate:"required"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" env:"LOG_FORMAT" validate:"oneof=json console"`
	File   string `mapstructure:"file" env:"LOG_FILE"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" env:"METRICS_ADDR" validate:"omitempty,hostname_port"`
}

// AppConfig is the top-level application configuration. It is built once
// by LoadConfig and not changed afterwards.
type AppConfig struct {
	IMAP     IMAPConfig     `mapstructure:"imap"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Format   FormatConfig   `mapstructure:"format"`
	State    StateConfig    `mapstructure:"state"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`

	// CheckIntervalSec is the pause between polling cycles.
	CheckIntervalSec int `mapstructure:"check_interval" env:"CHECK_INTERVAL" validate:"min=1"`
}

// CheckInterval returns CheckIntervalSec as a duration.
func (c *AppConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSec) * time.Second
}

// IMAPTimeout returns the IMAP session bound, zero meaning none.
func (c *AppConfig) IMAPTimeout() time.Duration {
	return time.Duration(c.IMAP.TimeoutSec) * time.Second
}

// SecretLookup resolves a secret that is missing from the file and the
// environment. Keys are credential keyring keys. It returns "" when it has
// nothing for key.
type SecretLookup func(key string) (string, error)

// ValidationError lists the settings that are missing or invalid, by the
// environment variable that sets them.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required settings: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid settings: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailnotify/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailnotify", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("imap.server", "imap.yandex.ru")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.batch_size", 0)
	v.SetDefault("imap.timeout_sec", 120)
	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("format.dialect", "markdown")
	v.SetDefault("format.locale", "ru")
	v.SetDefault("format.max_body_length", 1000)
	v.SetDefault("format.strip_boilerplate", false)
	v.SetDefault("state.backend", "json")
	v.SetDefault("state.path", "processed_emails.json")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "logs/bot.log")
	v.SetDefault("check_interval", 300)
}

// bindEnv binds every field carrying an env tag to its variable.
func bindEnv(v *viper.Viper, t reflect.Type, prefix string) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key := prefix + f.Tag.Get("mapstructure")
		if f.Type.Kind() == reflect.Struct {
			if err := bindEnv(v, f.Type, key+"."); err != nil {
				return err
			}
			continue
		}
		if env := f.Tag.Get("env"); env != "" {
			if err := v.BindEnv(key, env); err != nil {
				return fmt.Errorf("binding %s: %w", env, err)
			}
		}
	}
	return nil
}

// ReadConfig reads configuration from the given YAML file path using
// Viper, then applies environment variables. A missing file, or an empty
// path, leaves the defaults in place. The result is not validated.
func ReadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v, reflect.TypeOf(AppConfig{}), ""); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfig runs ReadConfig, asks secrets for a password or bot token
// that is still empty, and validates the result.
func LoadConfig(path string, secrets SecretLookup) (*AppConfig, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}

	if secrets != nil {
		if err := fillSecrets(cfg, secrets); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fillSecrets(cfg *AppConfig, secrets SecretLookup) error {
	if cfg.IMAP.Password == "" && cfg.IMAP.Account != "" {
		pw, err := secrets(credential.IMAPKey(cfg.IMAP.Account))
		if err != nil {
			return fmt.Errorf("looking up IMAP password: %w", err)
		}
		cfg.IMAP.Password = pw
	}
	if cfg.Telegram.BotToken == "" {
		token, err := secrets(credential.TelegramKey)
		if err != nil {
			return fmt.Errorf("looking up bot token: %w", err)
		}
		cfg.Telegram.BotToken = token
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if env := f.Tag.Get("env"); env != "" {
			return env
		}
		return f.Tag.Get("mapstructure")
	})
	return v
}

// Validate checks required and enumerated settings. Failures come back as
// a *ValidationError.
func (c *AppConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validating config: %w", err)
	}

	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			verr.Missing = append(verr.Missing, fe.Field())
			continue
		}
		verr.Invalid = append(verr.Invalid, fmt.Sprintf("%s=%v (%s)", fe.Field(), fe.Value(), fe.Tag()))
	}
	return verr
}

// SaveConfig writes the non-secret settings of cfg to a YAML file at path,
// creating parent directories if needed. Password and bot token are never
// written.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("imap.server", cfg.IMAP.Server)
	v.Set("imap.port", cfg.IMAP.Port)
	v.Set("imap.account", cfg.IMAP.Account)
	v.Set("imap.mailbox", cfg.IMAP.Mailbox)
	v.Set("imap.tls", cfg.IMAP.TLS)
	v.Set("imap.batch_size", cfg.IMAP.BatchSize)
	v.Set("imap.timeout_sec", cfg.IMAP.TimeoutSec)
	v.Set("telegram.chat_id", cfg.Telegram.ChatID)
	v.Set("telegram.api_url", cfg.Telegram.APIURL)
	v.Set("format.dialect", cfg.Format.Dialect)
	v.Set("format.locale", cfg.Format.Locale)
	v.Set("format.max_body_length", cfg.Format.MaxBodyLength)
	v.Set("format.reserved_chars", cfg.Format.ReservedChars)
	v.Set("format.strip_boilerplate", cfg.Format.StripBoilerplate)
	if cfg.Format.BoilerplatePatterns != nil {
		v.Set("format.boilerplate_patterns", cfg.Format.BoilerplatePatterns)
	}
	v.Set("state.backend", cfg.State.Backend)
	v.Set("state.path", cfg.State.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("log.file", cfg.Log.File)
	v.Set("metrics.addr", cfg.Metrics.Addr)
	v.Set("check_interval", cfg.CheckIntervalSec)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
