package email

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailnotify/internal/source"
)

// Adapter implements source.Mailbox on top of an IMAPClient and logs what
// each session returned.
type Adapter struct {
	client *IMAPClient
	log    *zap.Logger
}

// NewAdapter creates a new mailbox adapter.
func NewAdapter(cfg Config, log *zap.Logger) *Adapter {
	client := NewIMAPClient(cfg)
	return &Adapter{
		client: client,
		log: log.With(
			zap.String("component", "imap"),
			zap.String("mailbox", client.cfg.Mailbox),
		),
	}
}

// FetchUnseen runs one IMAP session. Per-message failures are logged here
// and stay in the result for the caller to count.
func (a *Adapter) FetchUnseen(ctx context.Context) (*source.FetchResult, error) {
	start := time.Now()

	res, err := a.client.FetchUnseen(ctx)
	if err != nil {
		a.log.Warn("imap session failed",
			zap.Error(err),
			zap.Bool("auth", source.IsAuthError(err)),
			zap.Duration("took", time.Since(start)),
		)
		return nil, err
	}

	for _, f := range res.Failures {
		a.log.Warn("message fetch failed", zap.Uint32("uid", f.UID), zap.Error(f.Err))
	}

	a.log.Debug("imap session done",
		zap.Int("messages", len(res.Messages)),
		zap.Int("failures", len(res.Failures)),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

// Validate verifies IMAP credentials by connecting, authenticating, and
// selecting the mailbox.
func (a *Adapter) Validate(ctx context.Context) (string, error) {
	return a.client.Validate(ctx)
}
