package instructions

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/eternisai/enchanted-chat/internal/chat"
	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/gin-gonic/gin"
)

var testLogger *logger.Logger

func TestMain(m *testing.M) {
	flag.Parse()

	level := slog.LevelError
	if testing.Verbose() {
		level = slog.LevelDebug
	}
	testLogger = logger.New(logger.Config{Level: level})
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type memoryRepository struct {
	mu      sync.Mutex
	records map[string]chat.CustomInstruction
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{records: map[string]chat.CustomInstruction{}}
}

func (r *memoryRepository) Get(ctx context.Context, userID string) (*chat.CustomInstruction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	instr, ok := r.records[userID]
	if !ok {
		return nil, nil
	}
	return &instr, nil
}

func (r *memoryRepository) Ensure(ctx context.Context, userID string) (chat.CustomInstruction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	instr, ok := r.records[userID]
	if !ok {
		instr = chat.CustomInstruction{Commands: []chat.CustomCommand{}, Active: true}
		r.records[userID] = instr
	}
	instr.Commands = append([]chat.CustomCommand(nil), instr.Commands...)
	return instr, nil
}

func (r *memoryRepository) Save(ctx context.Context, userID string, instr chat.CustomInstruction) (chat.CustomInstruction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[userID] = instr
	return instr, nil
}

func newTestService() (*Service, *memoryRepository) {
	repo := newMemoryRepository()
	return NewService(repo, testLogger), repo
}

func TestGetCreatesDefaultsLazily(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if instr, err := svc.Lookup(ctx, "u1"); err != nil || instr != nil {
		t.Fatalf("expected no instructions before first access, got %+v, %v", instr, err)
	}

	instr, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !instr.Active || instr.AboutYou != "" || instr.AssistantBehavior != "" || len(instr.Commands) != 0 {
		t.Errorf("unexpected defaults %+v", instr)
	}

	if instr, err := svc.Lookup(ctx, "u1"); err != nil || instr == nil {
		t.Fatalf("expected instructions after Get, got %+v, %v", instr, err)
	}
}

func TestUpdateAppliesOnlyProvidedFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	about := "I write Go."
	if _, err := svc.Update(ctx, "u1", Patch{AboutYou: &about}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	behavior := "Be brief."
	inactive := false
	instr, err := svc.Update(ctx, "u1", Patch{AssistantBehavior: &behavior, Active: &inactive})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if instr.AboutYou != about || instr.AssistantBehavior != behavior || instr.Active {
		t.Errorf("unexpected instructions %+v", instr)
	}
}

func TestUpdateValidation(t *testing.T) {
	long := strings.Repeat("é", MaxTextLength+1)
	exact := strings.Repeat("é", MaxTextLength)

	tests := []struct {
		name      string
		patch     Patch
		wantField string
	}{
		{name: "about_you at limit", patch: Patch{AboutYou: &exact}},
		{name: "about_you too long", patch: Patch{AboutYou: &long}, wantField: "about_you"},
		{name: "behavior too long", patch: Patch{AssistantBehavior: &long}, wantField: "assistant_behavior"},
		{
			name:      "command without description",
			patch:     Patch{Commands: &[]chat.CustomCommand{{Command: "tldr"}}},
			wantField: "custom_commands.description",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			_, err := svc.Update(context.Background(), "u1", tt.patch)

			var validationErr *ValidationError
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.As(err, &validationErr) || validationErr.Field != tt.wantField {
				t.Fatalf("expected validation error on %s, got %v", tt.wantField, err)
			}
		})
	}
}

func TestAddCommand(t *testing.T) {
	tests := []struct {
		name      string
		req       AddCommandRequest
		want      chat.CustomCommand
		wantField string
	}{
		{
			name: "strips leading slash",
			req:  AddCommandRequest{Command: "/tldr", Description: "Summarize in one line"},
			want: chat.CustomCommand{Command: "tldr", Description: "Summarize in one line"},
		},
		{name: "missing command", req: AddCommandRequest{Description: "x"}, wantField: "command"},
		{name: "slash only", req: AddCommandRequest{Command: "/", Description: "x"}, wantField: "command"},
		{name: "two words", req: AddCommandRequest{Command: "two words", Description: "x"}, wantField: "command"},
		{name: "command too long", req: AddCommandRequest{Command: strings.Repeat("a", 51), Description: "x"}, wantField: "command"},
		{name: "missing description", req: AddCommandRequest{Command: "tldr"}, wantField: "description"},
		{name: "description too long", req: AddCommandRequest{Command: "tldr", Description: strings.Repeat("a", 501)}, wantField: "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			instr, err := svc.AddCommand(context.Background(), "u1", tt.req)

			if tt.wantField != "" {
				var validationErr *ValidationError
				if !errors.As(err, &validationErr) || validationErr.Field != tt.wantField {
					t.Fatalf("expected validation error on %s, got %v", tt.wantField, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("AddCommand failed: %v", err)
			}
			if len(instr.Commands) != 1 || instr.Commands[0] != tt.want {
				t.Errorf("expected commands [%+v], got %+v", tt.want, instr.Commands)
			}
		})
	}
}

func TestRemoveCommand(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := svc.AddCommand(ctx, "u1", AddCommandRequest{Command: name, Description: "desc " + name}); err != nil {
			t.Fatalf("AddCommand(%s) failed: %v", name, err)
		}
	}

	instr, err := svc.RemoveCommand(ctx, "u1", 1)
	if err != nil {
		t.Fatalf("RemoveCommand failed: %v", err)
	}
	if len(instr.Commands) != 2 || instr.Commands[0].Command != "a" || instr.Commands[1].Command != "c" {
		t.Errorf("unexpected commands after removal: %+v", instr.Commands)
	}

	for _, index := range []int{-1, 2, 10} {
		if _, err := svc.RemoveCommand(ctx, "u1", index); !errors.Is(err, ErrCommandNotFound) {
			t.Errorf("RemoveCommand(%d): expected ErrCommandNotFound, got %v", index, err)
		}
	}
}

func TestToggle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	instr, err := svc.Toggle(ctx, "u1")
	if err != nil || instr.Active {
		t.Fatalf("expected inactive after first toggle, got %+v, %v", instr, err)
	}

	instr, err = svc.Toggle(ctx, "u1")
	if err != nil || !instr.Active {
		t.Fatalf("expected active after second toggle, got %+v, %v", instr, err)
	}
}
