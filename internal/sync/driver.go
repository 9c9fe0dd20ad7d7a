// Package sync runs polling cycles that turn unseen mail into chat
// notifications.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/mailnotify/internal/chat/telegram"
	"github.com/nhle/mailnotify/internal/format"
	"github.com/nhle/mailnotify/internal/mailparse"
	"github.com/nhle/mailnotify/internal/metrics"
	"github.com/nhle/mailnotify/internal/source"
	"github.com/nhle/mailnotify/internal/store"
)

// Mailbox yields the unseen messages of one folder.
type Mailbox interface {
	FetchUnseen(ctx context.Context) (*source.FetchResult, error)
}

// Sender delivers one chat message. An empty parseMode sends plain text.
type Sender interface {
	Send(ctx context.Context, text, parseMode string) error
}

// CycleResult counts what one cycle did with the fetched batch.
type CycleResult struct {
	Fetched  int
	Notified int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// DriverConfig wires a Driver. Mailbox, Sender and Store are required.
type DriverConfig struct {
	Mailbox   Mailbox
	Sender    Sender
	Store     store.Store
	Formatter *format.Formatter
	Extractor *mailparse.Extractor
	Dialect   format.Dialect
	Logger    *zap.Logger
}

// Driver processes one batch of unseen messages per cycle.
type Driver struct {
	mailbox   Mailbox
	sender    Sender
	store     store.Store
	formatter *format.Formatter
	extractor *mailparse.Extractor
	dialect   format.Dialect
	log       *zap.Logger
}

// NewDriver creates a driver. A nil Formatter uses the default locale and
// body cap, a nil Extractor sanitizes without boilerplate stripping and a
// nil Logger discards logs.
func NewDriver(cfg DriverConfig) (*Driver, error) {
	if cfg.Mailbox == nil || cfg.Sender == nil || cfg.Store == nil {
		return nil, errors.New("driver needs a mailbox, a sender and a store")
	}

	d := &Driver{
		mailbox:   cfg.Mailbox,
		sender:    cfg.Sender,
		store:     cfg.Store,
		formatter: cfg.Formatter,
		extractor: cfg.Extractor,
		dialect:   cfg.Dialect,
		log:       cfg.Logger,
	}
	if d.formatter == nil {
		f, err := format.NewFormatter(format.DefaultLocale, format.DefaultMaxBodyLength)
		if err != nil {
			return nil, err
		}
		d.formatter = f
	}
	if d.extractor == nil {
		d.extractor = mailparse.NewExtractor(&mailparse.Sanitizer{})
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	d.log = d.log.With(zap.String("component", "driver"))
	return d, nil
}

type outcome int

const (
	outcomeNotified outcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeMalformed
)

// RunCycle fetches unseen messages and notifies each one not yet recorded
// in the store. Only a failed fetch or a canceled context ends the cycle
// with an error; everything else is logged and counted.
func (d *Driver) RunCycle(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	log := d.log.With(zap.String("cycle_id", uuid.NewString()))

	var res CycleResult
	finish := func(err error) (CycleResult, error) {
		res.Duration = time.Since(start)
		result := metrics.CycleOK
		if err != nil {
			result = metrics.CycleFailed
		}
		metrics.RecordCycle(result, res.Duration)
		return res, err
	}

	seen, err := d.store.Load(ctx)
	if err != nil {
		log.Warn("loading processed ids failed, continuing with an empty set", zap.Error(err))
		seen = store.NewIDSet()
	}

	batch, err := d.mailbox.FetchUnseen(ctx)
	if err != nil {
		log.Error("fetching unseen messages failed, cycle aborted",
			zap.Error(err),
			zap.Bool("auth", source.IsAuthError(err)),
		)
		return finish(fmt.Errorf("fetching unseen messages: %w", err))
	}

	res.Fetched = len(batch.Messages)
	res.Failed = len(batch.Failures)
	for range batch.Failures {
		metrics.RecordMessage(metrics.OutcomeFailed)
	}

	for _, raw := range batch.Messages {
		if err := ctx.Err(); err != nil {
			log.Info("cycle interrupted", zap.Error(err))
			return finish(err)
		}

		switch d.process(ctx, log.With(zap.Uint32("uid", raw.UID)), raw, seen) {
		case outcomeNotified:
			res.Notified++
			metrics.RecordMessage(metrics.OutcomeNotified)
		case outcomeSkipped:
			res.Skipped++
			metrics.RecordMessage(metrics.OutcomeSkipped)
		case outcomeMalformed:
			res.Failed++
			metrics.RecordMessage(metrics.OutcomeMalformed)
		default:
			res.Failed++
			metrics.RecordMessage(metrics.OutcomeFailed)
		}
	}

	log.Info("cycle finished",
		zap.Int("fetched", res.Fetched),
		zap.Int("notified", res.Notified),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return finish(nil)
}

func (d *Driver) process(ctx context.Context, log *zap.Logger, raw source.RawMessage, seen store.IDSet) outcome {
	msg, err := mailparse.Parse(raw.Raw)
	if err != nil {
		log.Warn("skipping unparseable message", zap.Error(err))
		return outcomeMalformed
	}

	id := source.MessageIdentity(msg, raw)
	if seen.Contains(id) {
		log.Debug("already notified", zap.String("message_id", id))
		return outcomeSkipped
	}
	log = log.With(zap.String("message_id", id))

	if err := d.deliver(ctx, log, msg.Fields(), d.extractor.Extract(msg)); err != nil {
		log.Error("delivery failed, message left for the next cycle", zap.Error(err))
		return outcomeFailed
	}

	if err := d.store.Add(ctx, id); err != nil {
		log.Warn("recording processed id failed", zap.Error(err))
	}
	seen.Add(id)

	log.Info("notified")
	return outcomeNotified
}

// deliver sends the notification in the active dialect and, when that
// fails, once more as plain text.
func (d *Driver) deliver(ctx context.Context, log *zap.Logger, fields mailparse.Fields, body string) error {
	n := d.formatter.Build(fields, body, d.dialect)
	err := d.sender.Send(ctx, n.Text, n.Dialect.Name)
	if err == nil || d.dialect.IsPlain() || ctx.Err() != nil {
		return err
	}

	log.Warn("formatted send failed, retrying as plain text",
		zap.Error(err),
		zap.String("dialect", d.dialect.String()),
		zap.Bool("parse_error", telegram.IsParseError(err)),
	)
	metrics.RecordFallback()

	plain := d.formatter.Build(fields, body, format.Plain)
	if plainErr := d.sender.Send(ctx, plain.Text, plain.Dialect.Name); plainErr != nil {
		return fmt.Errorf("plain text fallback: %w", errors.Join(plainErr, err))
	}
	return nil
}
