package pgdb

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID        uuid.UUID      `json:"id"`
	UserID    string         `json:"user_id"`
	Model     string         `json:"model"`
	Title     sql.NullString `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type CustomInstruction struct {
	ID                int64           `json:"id"`
	UserID            string          `json:"user_id"`
	AboutYou          string          `json:"about_you"`
	AssistantBehavior string          `json:"assistant_behavior"`
	CustomCommands    json.RawMessage `json:"custom_commands"`
	IsActive          bool            `json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type Message struct {
	ID             uuid.UUID `json:"id"`
	Seq            int64     `json:"seq"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type RequestLog struct {
	ID               int64           `json:"id"`
	UserID           string          `json:"user_id"`
	ConversationID   uuid.NullUUID   `json:"conversation_id"`
	Endpoint         string          `json:"endpoint"`
	Model            *string         `json:"model"`
	Provider         string          `json:"provider"`
	Temperature      sql.NullFloat64 `json:"temperature"`
	PromptTokens     sql.NullInt32   `json:"prompt_tokens"`
	CompletionTokens sql.NullInt32   `json:"completion_tokens"`
	TotalTokens      sql.NullInt32   `json:"total_tokens"`
	LatencyMs        int32           `json:"latency_ms"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

type User struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	PreferredModel sql.NullString `json:"preferred_model"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
