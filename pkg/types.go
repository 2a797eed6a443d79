package pkg

import (
	"time"
)

// Message roles used in conversation history
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ConversationMessage represents a message in conversation history
type ConversationMessage struct {
	Role      string    `json:"role"` // user, assistant, system
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// NewUserMessage creates a user message stamped with the current time
func NewUserMessage(content string) ConversationMessage {
	return ConversationMessage{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// NewAssistantMessage creates an assistant message stamped with the current time
func NewAssistantMessage(content string) ConversationMessage {
	return ConversationMessage{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}

// TrimTail keeps only the most recent maxMessages entries
func TrimTail(messages []ConversationMessage, maxMessages int) []ConversationMessage {
	if maxMessages <= 0 || len(messages) <= maxMessages {
		return messages
	}
	return messages[len(messages)-maxMessages:]
}
