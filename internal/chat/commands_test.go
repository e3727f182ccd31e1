package chat

import "testing"

func TestApplyCustomCommand(t *testing.T) {
	active := &CustomInstruction{
		Commands: []CustomCommand{
			{Command: "tr", Description: "Translate to French"},
			{Command: "tr", Description: "Duplicate entry"},
			{Command: "sum", Description: "Summarize"},
		},
		Active: true,
	}

	tests := []struct {
		name     string
		messages []Message
		instr    *CustomInstruction
		wantNote string
	}{
		{
			name:     "matching command with parameters",
			messages: []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "/tr  hello   world"}},
			instr:    active,
			wantNote: "The user invoked the command /tr. Description: Translate to French. Parameters: hello world",
		},
		{
			name:     "matching command without parameters",
			messages: []Message{{Role: RoleUser, Content: "/sum"}},
			instr:    active,
			wantNote: "The user invoked the command /sum. Description: Summarize. Parameters: ",
		},
		{
			name:     "unknown command",
			messages: []Message{{Role: RoleUser, Content: "/nope x"}},
			instr:    active,
		},
		{
			name:     "not a command",
			messages: []Message{{Role: RoleUser, Content: "hello /tr"}},
			instr:    active,
		},
		{
			name:     "last message from assistant",
			messages: []Message{{Role: RoleUser, Content: "/tr x"}, {Role: RoleAssistant, Content: "/tr x"}},
			instr:    active,
		},
		{
			name:     "inactive instructions",
			messages: []Message{{Role: RoleUser, Content: "/tr x"}},
			instr:    &CustomInstruction{Commands: active.Commands, Active: false},
		},
		{
			name:     "no instructions",
			messages: []Message{{Role: RoleUser, Content: "/tr x"}},
			instr:    nil,
		},
		{
			name:     "empty history",
			messages: nil,
			instr:    active,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyCustomCommand(tt.messages, tt.instr)

			if tt.wantNote == "" {
				if len(got) != len(tt.messages) {
					t.Fatalf("expected no-op, got %d messages from %d", len(got), len(tt.messages))
				}
				return
			}

			if len(got) != len(tt.messages)+1 {
				t.Fatalf("expected exactly one appended message, got %d from %d", len(got), len(tt.messages))
			}
			note := got[len(got)-1]
			if note.Role != RoleSystem || note.Content != tt.wantNote {
				t.Errorf("unexpected note %+v", note)
			}
		})
	}
}

func TestApplyCustomCommandDoesNotMutateInput(t *testing.T) {
	instr := &CustomInstruction{Commands: []CustomCommand{{Command: "tr", Description: "Translate"}}, Active: true}
	messages := make([]Message, 1, 4)
	messages[0] = Message{Role: RoleUser, Content: "/tr x"}

	got := ApplyCustomCommand(messages, instr)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}

	// Appending to the input must not see the note through shared backing storage.
	extended := append(messages, Message{Role: RoleAssistant, Content: "ok"})
	if got[1].Role != RoleSystem || extended[1].Role != RoleAssistant {
		t.Error("result shares backing array with input")
	}
}
