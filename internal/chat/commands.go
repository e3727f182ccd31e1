package chat

import (
	"fmt"
	"strings"
)

// ApplyCustomCommand appends a system note when the last message invokes one of
// the user's custom commands. The input slice is never modified; when nothing
// matches the original slice is returned as is.
func ApplyCustomCommand(messages []Message, instr *CustomInstruction) []Message {
	if len(messages) == 0 {
		return messages
	}

	last := messages[len(messages)-1]
	if last.Role != RoleUser || !strings.HasPrefix(last.Content, "/") {
		return messages
	}

	if instr == nil || !instr.Active || len(instr.Commands) == 0 {
		return messages
	}

	parts := strings.Fields(last.Content)
	name := strings.TrimPrefix(parts[0], "/")
	params := parts[1:]

	// First match wins when names are duplicated.
	for _, cmd := range instr.Commands {
		if cmd.Command != name {
			continue
		}

		out := make([]Message, len(messages), len(messages)+1)
		copy(out, messages)
		return append(out, Message{
			Role: RoleSystem,
			Content: fmt.Sprintf("The user invoked the command /%s. Description: %s. Parameters: %s",
				name, cmd.Description, strings.Join(params, " ")),
		})
	}

	return messages
}
