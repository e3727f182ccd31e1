package chat

import (
	"strings"
	"testing"
	"time"
)

var promptTime = time.Date(2025, time.March, 4, 14, 5, 0, 0, time.UTC)

func TestBuildSystemPrompt(t *testing.T) {
	user := User{ID: "u1", Name: "Ada"}
	base := "You are a chat assistant. The current date and time is Tuesday 04 March 2025 14:05.\n" +
		"You are currently being used by Ada."

	tests := []struct {
		name  string
		instr *CustomInstruction
		want  string
	}{
		{name: "no instructions", instr: nil, want: base},
		{
			name:  "inactive instructions are ignored",
			instr: &CustomInstruction{AboutYou: "I like Go", Active: false},
			want:  base,
		},
		{
			name:  "active but empty",
			instr: &CustomInstruction{Active: true},
			want:  base,
		},
		{
			name:  "about only",
			instr: &CustomInstruction{AboutYou: "I like Go", Active: true},
			want:  base + "\n\nAbout the user: I like Go",
		},
		{
			name: "all sections in order",
			instr: &CustomInstruction{
				AboutYou:          "I like Go",
				AssistantBehavior: "Be brief",
				Commands: []CustomCommand{
					{Command: "tr", Description: "Translate"},
					{Command: "sum", Description: "Summarize"},
				},
				Active: true,
			},
			want: base +
				"\n\nAbout the user: I like Go" +
				"\n\nPreferred behavior: Be brief" +
				"\n\nAvailable custom commands:\n- /tr : Translate\n- /sum : Summarize",
		},
		{
			name: "commands without text sections",
			instr: &CustomInstruction{
				Commands: []CustomCommand{{Command: "tr", Description: "Translate"}},
				Active:   true,
			},
			want: base + "\n\nAvailable custom commands:\n- /tr : Translate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildSystemPrompt(user, tt.instr, promptTime)
			if got.Role != RoleSystem {
				t.Errorf("expected system role, got %q", got.Role)
			}
			if got.Content != tt.want {
				t.Errorf("unexpected prompt:\n got: %q\nwant: %q", got.Content, tt.want)
			}
		})
	}
}

func TestBuildSystemPromptUsesGivenLocation(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	got := BuildSystemPrompt(User{Name: "Ada"}, nil, promptTime.In(paris))
	if !strings.Contains(got.Content, "15:05") {
		t.Errorf("expected local time 15:05 in prompt, got %q", got.Content)
	}
}
