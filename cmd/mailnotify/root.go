package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/mailnotify/internal/credential"
	"github.com/nhle/mailnotify/internal/logging"
	"github.com/nhle/mailnotify/internal/model"
)

var (
	configPath string
	envFile    string

	rootCmd = &cobra.Command{
		Use:   "mailnotify",
		Short: "Forward unseen IMAP mail to a Telegram chat",
		Long: `mailnotify polls one IMAP mailbox and posts a summary of every unseen
message to a Telegram chat. Messages are never marked as read.

Settings come from the config file, then from environment variables
(IMAP_SERVER, EMAIL_ACCOUNT, EMAIL_PASSWORD, BOT_TOKEN, CHAT_ID, ...).
A .env file in the working directory is loaded first. A password or bot
token missing from both is read from the system keyring, see "login".

Without a subcommand mailnotify runs the polling loop.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadDotEnv(envFile)
		},
		RunE: runLoop,
	}
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", model.DefaultConfigPath(), "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before the environment is read")
}

// loadDotEnv loads path into the environment. Variables already set win. A
// missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// keyringSecrets looks secrets up in the system keyring. A keyring that
// cannot be opened yields no secrets, so validation reports them missing.
func keyringSecrets(stderr func(format string, a ...any)) model.SecretLookup {
	var (
		ring    *credential.Store
		openErr error
		opened  bool
	)
	return func(key string) (string, error) {
		if !opened {
			opened = true
			ring, openErr = credential.Open()
			if openErr != nil {
				stderr("keyring unavailable: %v\n", openErr)
			}
		}
		if openErr != nil {
			return "", nil
		}
		return ring.Lookup(key)
	}
}

// setup loads the validated configuration and builds the logger.
func setup(cmd *cobra.Command) (*model.AppConfig, *zap.Logger, error) {
	cfg, err := model.LoadConfig(configPath, keyringSecrets(func(format string, a ...any) {
		fmt.Fprintf(cmd.ErrOrStderr(), format, a...)
	}))
	if err != nil {
		return nil, nil, err
	}

	log, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
