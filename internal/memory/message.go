// Package memory provides bounded per-user conversation memory.
// All state is process-resident and lost on restart.
package memory

// Role identifies who produced a message.
type Role string

// Roles match the completion backend's wire values.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single utterance in a conversation. Immutable once
// created; ordering within a conversation is significant.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
