// Package credential keeps the IMAP password and the bot token in the
// system keyring.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "mailnotify"

// TelegramKey is the keyring entry holding the bot token.
const TelegramKey = "telegram-bot"

// IMAPKey returns the keyring entry holding the password of account.
func IMAPKey(account string) string {
	return "imap-" + account
}

// Store reads and writes credentials in one keyring.
type Store struct {
	ring keyring.Keyring
}

// NewStore wraps an opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open returns a Store on the first available system backend.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailnotify/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailnotify-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewStore(ring), nil
}

// Get retrieves a credential value by key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Lookup is Get with a missing entry reported as "" and no error.
func (s *Store) Lookup(key string) (string, error) {
	v, err := s.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	return v, err
}

// Set stores a credential value by key.
func (s *Store) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key.
func (s *Store) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
