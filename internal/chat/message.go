package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/mkrenz/schreibcoach/internal/analysis"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// Kind classifies a message by how it was produced.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindAnalysis Kind = "analysis"
)

// Metadata carries optional attachment information for a message.
// Present only on analysis messages.
type Metadata struct {
	FileName      string           `json:"file_name,omitempty"`
	FileSize      int64            `json:"file_size,omitempty"`
	ExtractedText string           `json:"extracted_text,omitempty"`
	Analysis      *analysis.Result `json:"analysis,omitempty"`
}

// Message is a single entry in a conversation. Messages are immutable once
// created; the conversation is an append-only sequence in insertion order.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Content        string    `json:"content"`
	Sender         Sender    `json:"sender"`
	Timestamp      time.Time `json:"timestamp"`
	Kind           Kind      `json:"kind"`
	Metadata       *Metadata `json:"metadata,omitempty"`
}

// NewMessage creates a message with a fresh ID and the current time.
func NewMessage(conversationID string, sender Sender, kind Kind, content string) *Message {
	return &Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Content:        content,
		Sender:         sender,
		Timestamp:      time.Now().UTC(),
		Kind:           kind,
	}
}
