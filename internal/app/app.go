// Package app wires the configured components into a running notifier.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailnotify/internal/chat/telegram"
	"github.com/nhle/mailnotify/internal/metrics"
	"github.com/nhle/mailnotify/internal/model"
	"github.com/nhle/mailnotify/internal/source"
	"github.com/nhle/mailnotify/internal/store"
	appsync "github.com/nhle/mailnotify/internal/sync"
)

// App owns the store, the collaborators and the driver built from one
// configuration.
type App struct {
	cfg     *model.AppConfig
	log     *zap.Logger
	store   store.Store
	mailbox source.Mailbox
	bot     *telegram.Client
	driver  *appsync.Driver
}

// New builds every component from cfg. The caller must Close the App.
func New(cfg *model.AppConfig, log *zap.Logger) (*App, error) {
	extractor, err := newExtractor(cfg.Format)
	if err != nil {
		return nil, err
	}
	formatter, dialect, err := newRendering(cfg.Format)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		store:   st,
		mailbox: newMailbox(cfg, log),
		bot:     telegram.NewClient(cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID),
	}

	a.driver, err = appsync.NewDriver(appsync.DriverConfig{
		Mailbox:   a.mailbox,
		Sender:    a.bot,
		Store:     st,
		Formatter: formatter,
		Extractor: extractor,
		Dialect:   dialect,
		Logger:    log,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return a, nil
}

// Once runs a single cycle.
func (a *App) Once(ctx context.Context) (appsync.CycleResult, error) {
	return a.driver.RunCycle(ctx)
}

// Run polls until ctx is done. The metrics endpoint, when configured, runs
// alongside the poller.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Metrics.Addr; addr != "" {
		g.Go(func() error {
			a.log.Info("serving metrics", zap.String("addr", addr))
			if err := metrics.Serve(ctx, addr); err != nil {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return appsync.NewPoller(a.driver, a.cfg.CheckInterval(), a.log).Run(ctx)
	})

	return g.Wait()
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}

// CheckResult is the outcome of one startup check.
type CheckResult struct {
	Name   string
	OK     bool
	Detail string
	Err    error
}

// Check logs in to the mailbox, asks the Bot API who the bot is and loads
// the dedup store. It returns one result per collaborator and an error
// when any of them failed.
func (a *App) Check(ctx context.Context) ([]CheckResult, error) {
	var results []CheckResult

	status, err := a.mailbox.Validate(ctx)
	results = append(results, checkResult("imap", status, err))

	bot, err := a.bot.GetMe(ctx)
	if err == nil {
		bot = fmt.Sprintf("%s -> chat %s", bot, a.cfg.Telegram.ChatID)
	}
	results = append(results, checkResult("telegram", bot, err))

	results = append(results, a.checkStore(ctx))

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (a *App) checkStore(ctx context.Context) CheckResult {
	ids, err := a.store.Load(ctx)
	if err != nil {
		return checkResult("state", "", err)
	}

	detail := fmt.Sprintf("%s %s: %d processed", a.cfg.State.Backend, a.cfg.State.Path, ids.Len())
	if ts, ok := a.store.(store.Timestamped); ok {
		if last, err := ts.LastUpdated(ctx); err == nil && !last.IsZero() {
			detail += ", last updated " + last.Format("2006-01-02 15:04:05 MST")
		}
	}
	return checkResult("state", detail, nil)
}

func checkResult(name, detail string, err error) CheckResult {
	r := CheckResult{Name: name, OK: err == nil, Detail: detail, Err: err}
	if err != nil {
		r.Detail = err.Error()
	}
	return r
}
