package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/mailnotify/internal/app"
	"github.com/nhle/mailnotify/internal/theme"
)

const checkTimeout = 30 * time.Second

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the mailbox login, the bot token and the state store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		a, err := app.New(cfg, zap.NewNop())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		ctx, cancel := context.WithTimeout(commandContext(cmd), checkTimeout)
		defer cancel()

		results, checkErr := a.Check(ctx)
		fmt.Fprintln(cmd.OutOrStdout(), renderCheck(results))
		return checkErr
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func renderCheck(results []app.CheckResult) string {
	lines := make([]string, 0, len(results)+1)
	failed := false
	for _, r := range results {
		state := theme.CheckOK
		if !r.OK {
			state = theme.CheckFail
			failed = true
		}
		lines = append(lines, theme.CheckLine(state, r.Name, r.Detail))
	}
	if failed {
		lines = append(lines, "", theme.HelpStyle.Render(`Fix the failing settings, or run "mailnotify login" to store credentials.`))
	}
	return theme.Report("mailnotify check", lines...)
}
