package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/mailnotify/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the mailbox until interrupted",
	Long: `Runs a cycle immediately and then one every check interval
(CHECK_INTERVAL, seconds). SIGINT or SIGTERM stops the loop after the
running cycle.`,
	RunE: runLoop,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runLoop(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("closing state store", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("mailnotify started",
		zap.String("account", cfg.IMAP.Account),
		zap.String("server", cfg.IMAP.Server),
		zap.String("mailbox", cfg.IMAP.Mailbox),
		zap.Duration("interval", cfg.CheckInterval()),
		zap.String("dialect", cfg.Format.Dialect),
		zap.String("state", cfg.State.Backend+":"+cfg.State.Path),
	)

	if err := a.Run(ctx); err != nil {
		log.Error("stopped with error", zap.Error(err))
		return err
	}
	log.Info("mailnotify stopped")
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
