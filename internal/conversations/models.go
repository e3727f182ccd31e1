package conversations

import (
	"errors"
	"fmt"
	"time"

	"github.com/eternisai/enchanted-chat/internal/chat"
	"github.com/google/uuid"
)

// MaxTitleLength bounds user-set titles, in characters.
const MaxTitleLength = 255

var (
	ErrNotFound          = errors.New("conversation not found")
	ErrNotOwned          = errors.New("conversation belongs to another user")
	ErrNotEnoughMessages = errors.New("conversation needs at least two messages")
)

// ValidationError reports an invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Model     string    `json:"model"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is a conversation list entry with its latest message.
type Summary struct {
	Conversation
	LastMessage   string     `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           chat.Role `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Detail is a conversation with its full ordered history.
type Detail struct {
	Conversation
	Messages []Message `json:"messages"`
}

// Exchange is the outcome of one posted turn.
type Exchange struct {
	UserMessage      Message `json:"user_message"`
	AssistantMessage Message `json:"assistant_message"`
	// ShouldGenerateTitle is set after the first exchange of an untitled conversation.
	ShouldGenerateTitle bool `json:"should_generate_title"`
}

func toHistory(messages []Message) []chat.Message {
	history := make([]chat.Message, len(messages))
	for i, m := range messages {
		history[i] = chat.Message{Role: m.Role, Content: m.Content}
	}
	return history
}
