package app

import (
	"errors"

	"go.uber.org/zap"

	"github.com/nhle/mailnotify/internal/format"
	"github.com/nhle/mailnotify/internal/mailparse"
	"github.com/nhle/mailnotify/internal/model"
	"github.com/nhle/mailnotify/internal/source/email"
)

// newMailbox builds the IMAP adapter from the mailbox settings.
func newMailbox(cfg *model.AppConfig, log *zap.Logger) *email.Adapter {
	return email.NewAdapter(email.Config{
		Host:      cfg.IMAP.Server,
		Port:      cfg.IMAP.Port,
		Username:  cfg.IMAP.Account,
		Password:  cfg.IMAP.Password,
		TLS:       cfg.IMAP.TLS,
		Mailbox:   cfg.IMAP.Mailbox,
		BatchSize: cfg.IMAP.BatchSize,
		Timeout:   cfg.IMAPTimeout(),
	}, log)
}

// newExtractor returns the body extractor, with boilerplate stripping when
// enabled.
func newExtractor(cfg model.FormatConfig) (*mailparse.Extractor, error) {
	s := &mailparse.Sanitizer{}
	if cfg.StripBoilerplate {
		filter, err := mailparse.NewBoilerplateFilter(cfg.BoilerplatePatterns)
		if err != nil {
			return nil, err
		}
		s.Boilerplate = filter
	}
	return mailparse.NewExtractor(s), nil
}

// newRendering returns the formatter and the active dialect.
func newRendering(cfg model.FormatConfig) (*format.Formatter, format.Dialect, error) {
	f, err := format.NewFormatter(cfg.Locale, cfg.MaxBodyLength)
	if err != nil {
		return nil, format.Dialect{}, err
	}

	d, err := format.DialectByName(cfg.Dialect)
	if err != nil {
		return nil, format.Dialect{}, err
	}
	if cfg.ReservedChars != "" {
		if d.IsPlain() {
			return nil, format.Dialect{}, errors.New("reserved characters cannot be set for the plain dialect")
		}
		d = d.WithReserved(cfg.ReservedChars)
	}
	return f, d, nil
}
