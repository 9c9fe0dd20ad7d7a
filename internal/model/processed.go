package model

import "time"

// ProcessedMessage records a message whose notification was delivered.
type ProcessedMessage struct {
	// ID is the message identity, usually its Message-ID header.
	ID string `db:"id" json:"id"`

	// NotifiedAt is when the chat accepted the notification.
	NotifiedAt time.Time `db:"notified_at" json:"notified_at"`
}
