package instructions

import (
	"errors"
	"fmt"

	"github.com/eternisai/enchanted-chat/internal/chat"
)

const (
	MaxTextLength        = 2000
	MaxCommandLength     = 50
	MaxDescriptionLength = 500
)

// ErrCommandNotFound is returned when a command index is out of range.
var ErrCommandNotFound = errors.New("custom command not found")

// ValidationError reports an invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	AboutYou          *string               `json:"about_you"`
	AssistantBehavior *string               `json:"assistant_behavior"`
	Commands          *[]chat.CustomCommand `json:"custom_commands"`
	Active            *bool                 `json:"is_active"`
}

type AddCommandRequest struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

type RemoveCommandRequest struct {
	Index *int `json:"index" binding:"required"`
}
