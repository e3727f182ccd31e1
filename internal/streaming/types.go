package streaming

import (
	"time"
)

// EventType names a conversation event.
type EventType string

const (
	// EventChunk carries one assistant content delta.
	EventChunk EventType = "chunk"
	// EventDone ends a streamed turn.
	EventDone EventType = "done"
	// EventError ends a streamed turn that failed.
	EventError EventType = "error"
	// EventMessage announces a persisted message.
	EventMessage EventType = "message"
	// EventTitle announces a new conversation title.
	EventTitle EventType = "title"
	// EventHeartbeat keeps idle watch connections alive.
	EventHeartbeat EventType = "heartbeat"
)

// Event is sent to SSE clients and conversation watchers.
type Event struct {
	Type           EventType              `json:"type"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	MessageID      string                 `json:"message_id,omitempty"`
	Content        string                 `json:"content,omitempty"`
	Title          string                 `json:"title,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	// InstanceID is the server that published the event.
	InstanceID string `json:"instance_id,omitempty"`
}

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 100
