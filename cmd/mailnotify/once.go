package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/mailnotify/internal/app"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single polling cycle and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		a, err := app.New(cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := a.Once(ctx)
		if err != nil {
			log.Error("cycle failed", zap.Error(err))
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "fetched %d, notified %d, skipped %d, failed %d in %s\n",
			res.Fetched, res.Notified, res.Skipped, res.Failed, res.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(onceCmd)
}
