package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/mailnotify/internal/credential"
	"github.com/nhle/mailnotify/internal/model"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the mailbox password and bot token in the system keyring",
	Long: `Asks for the mailbox and bot settings. The password and the bot token
go to the system keyring; everything else is written to the config file.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := model.ReadConfig(configPath)
		if err != nil {
			return err
		}

		var in loginInput
		in.fill(cfg)
		if err := in.form().RunWithContext(commandContext(cmd)); err != nil {
			return err
		}
		if err := in.apply(cfg); err != nil {
			return err
		}

		ring, err := credential.Open()
		if err != nil {
			return err
		}
		if err := ring.Set(credential.IMAPKey(cfg.IMAP.Account), in.password); err != nil {
			return err
		}
		if err := ring.Set(credential.TelegramKey, in.botToken); err != nil {
			return err
		}

		if err := model.SaveConfig(configPath, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "credentials stored, settings written to %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

type loginInput struct {
	server   string
	port     string
	account  string
	password string
	tls      bool
	botToken string
	chatID   string
}

func (in *loginInput) fill(cfg *model.AppConfig) {
	in.server = cfg.IMAP.Server
	in.port = strconv.Itoa(cfg.IMAP.Port)
	in.account = cfg.IMAP.Account
	in.tls = cfg.IMAP.TLS
	in.chatID = cfg.Telegram.ChatID
}

func (in *loginInput) apply(cfg *model.AppConfig) error {
	port, err := strconv.Atoi(strings.TrimSpace(in.port))
	if err != nil {
		return fmt.Errorf("parsing port: %w", err)
	}
	cfg.IMAP.Server = strings.TrimSpace(in.server)
	cfg.IMAP.Port = port
	cfg.IMAP.Account = strings.TrimSpace(in.account)
	cfg.IMAP.TLS = in.tls
	cfg.Telegram.ChatID = strings.TrimSpace(in.chatID)
	return nil
}

func (in *loginInput) form() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Description("IMAP server hostname").
				Placeholder("imap.yandex.ru").
				Value(&in.server).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Description("IMAP server port (e.g., 993)").
				Placeholder("993").
				Value(&in.port).
				Validate(validatePort),
			huh.NewConfirm().
				Title("Use TLS").
				Description("Implicit TLS; STARTTLS otherwise").
				Affirmative("Yes").
				Negative("No").
				Value(&in.tls),
			huh.NewInput().
				Title("Email Account").
				Placeholder("user@yandex.ru").
				Value(&in.account).
				Validate(validateRequired("Email Account")),
			huh.NewInput().
				Title("Password").
				Description("Email account password or app password").
				EchoMode(huh.EchoModePassword).
				Value(&in.password).
				Validate(validateRequired("Password")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Bot Token").
				Description("Token issued by @BotFather").
				EchoMode(huh.EchoModePassword).
				Value(&in.botToken).
				Validate(validateRequired("Bot Token")),
			huh.NewInput().
				Title("Chat ID").
				Description("Chat, group or channel that receives notifications").
				Value(&in.chatID).
				Validate(validateRequired("Chat ID")),
		),
	)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validatePort(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("port is required")
	}
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}
