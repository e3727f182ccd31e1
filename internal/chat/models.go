package chat

import "github.com/eternisai/enchanted-chat/internal/upstream"

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one entry of a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// User is the authenticated caller, threaded explicitly through every call.
type User struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PreferredModel string `json:"preferred_model,omitempty"`
}

// CustomCommand is a user-configured slash command.
type CustomCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// CustomInstruction is the per-user persona text and command list.
type CustomInstruction struct {
	AboutYou          string          `json:"about_you"`
	AssistantBehavior string          `json:"assistant_behavior"`
	Commands          []CustomCommand `json:"custom_commands"`
	Active            bool            `json:"is_active"`
}

func toWire(messages []Message) []upstream.ChatMessage {
	out := make([]upstream.ChatMessage, len(messages))
	for i, m := range messages {
		out[i] = upstream.ChatMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}
