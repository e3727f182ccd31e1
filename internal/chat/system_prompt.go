package chat

import (
	"fmt"
	"strings"
	"time"
)

// promptTimeFormat renders e.g. "Tuesday 04 March 2025 14:05".
const promptTimeFormat = "Monday 02 January 2006 15:04"

// BuildSystemPrompt assembles the system message sent ahead of every history.
// Custom-instruction sections are appended only when instr is active, each
// omitted when its source field is empty.
func BuildSystemPrompt(user User, instr *CustomInstruction, now time.Time) Message {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a chat assistant. The current date and time is %s.\n", now.Format(promptTimeFormat))
	fmt.Fprintf(&b, "You are currently being used by %s.", user.Name)

	if instr != nil && instr.Active {
		if instr.AboutYou != "" {
			b.WriteString("\n\nAbout the user: ")
			b.WriteString(instr.AboutYou)
		}

		if instr.AssistantBehavior != "" {
			b.WriteString("\n\nPreferred behavior: ")
			b.WriteString(instr.AssistantBehavior)
		}

		if len(instr.Commands) > 0 {
			b.WriteString("\n\nAvailable custom commands:")
			for _, cmd := range instr.Commands {
				fmt.Fprintf(&b, "\n- /%s : %s", cmd.Command, cmd.Description)
			}
		}
	}

	return Message{Role: RoleSystem, Content: b.String()}
}
