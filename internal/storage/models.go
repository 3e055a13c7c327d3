package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// StoredMessage is a conversation entry persisted for history display.
// Metadata is the message's attachment info serialized as JSON text.
type StoredMessage struct {
	ID             string
	ConversationID string
	Sender         string
	Kind           string
	Content        string
	Metadata       string
	CreatedAt      time.Time
}

// ConversationSummary describes one conversation for listing.
type ConversationSummary struct {
	ID           string
	MessageCount int
	LastActivity time.Time
}
