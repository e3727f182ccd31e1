package title_generation

import "github.com/eternisai/enchanted-chat/internal/chat"

// Request carries the first exchange of a conversation.
type Request struct {
	User                  chat.User
	FirstUserMessage      string
	FirstAssistantMessage string
	Model                 string
}

// Outcome is the verdict of a single attempt.
type Outcome int

const (
	// OutcomeRetry means the attempt produced nothing usable.
	OutcomeRetry Outcome = iota
	// OutcomeAccepted means the cleaned title passed validation.
	OutcomeAccepted
)

func (o Outcome) String() string {
	if o == OutcomeAccepted {
		return "accepted"
	}
	return "retry"
}

// attempt is the result of one round trip to the model.
type attempt struct {
	outcome Outcome
	raw     string
	title   string
	err     error
}

// Result is the final title and how it was obtained.
type Result struct {
	Title    string
	Attempts int
	Fallback bool
}

// Job is an asynchronous title generation for a stored conversation.
type Job struct {
	Request
	ConversationID string
}
