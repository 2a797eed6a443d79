package nodes

import (
	"strings"

	"ingrevia/pkg"
)

// ContextStrategy renders conversation history for a prompt
type ContextStrategy interface {
	BuildContext(messages []pkg.ConversationMessage) string
	GetMaxTurns() int
}

// DefaultHistoryWindow is the number of recent messages used for preference inference
const DefaultHistoryWindow = 30

// TranscriptStrategy renders the last N messages as 사용자:/도우미: lines
type TranscriptStrategy struct {
	maxTurns int
}

func NewTranscriptStrategy(maxTurns int) *TranscriptStrategy {
	if maxTurns <= 0 {
		maxTurns = DefaultHistoryWindow
	}
	return &TranscriptStrategy{maxTurns: maxTurns}
}

func (s *TranscriptStrategy) GetMaxTurns() int {
	return s.maxTurns
}

func (s *TranscriptStrategy) BuildContext(messages []pkg.ConversationMessage) string {
	recent := pkg.TrimTail(messages, s.maxTurns)

	var b strings.Builder
	for _, msg := range recent {
		switch msg.Role {
		case pkg.RoleUser:
			b.WriteString("사용자: ")
		case pkg.RoleAssistant:
			b.WriteString("도우미: ")
		default:
			continue
		}
		b.WriteString(strings.TrimSpace(msg.Content))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func hasUserMessage(messages []pkg.ConversationMessage) bool {
	for _, msg := range messages {
		if msg.Role == pkg.RoleUser && strings.TrimSpace(msg.Content) != "" {
			return true
		}
	}
	return false
}
