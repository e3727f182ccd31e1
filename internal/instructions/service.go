package instructions

import (
	"context"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/eternisai/enchanted-chat/internal/chat"
	"github.com/eternisai/enchanted-chat/internal/logger"
)

type Service struct {
	repo   Repository
	logger *logger.Logger
}

func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log.WithComponent("instructions"),
	}
}

// Get returns the user's instructions, creating an empty active record on first access.
func (s *Service) Get(ctx context.Context, userID string) (chat.CustomInstruction, error) {
	return s.repo.Ensure(ctx, userID)
}

// Lookup returns the user's instructions or nil, without creating anything.
func (s *Service) Lookup(ctx context.Context, userID string) (*chat.CustomInstruction, error) {
	return s.repo.Get(ctx, userID)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, userID string, patch Patch) (chat.CustomInstruction, error) {
	if err := validatePatch(patch); err != nil {
		return chat.CustomInstruction{}, err
	}

	instr, err := s.repo.Ensure(ctx, userID)
	if err != nil {
		return chat.CustomInstruction{}, err
	}

	if patch.AboutYou != nil {
		instr.AboutYou = *patch.AboutYou
	}
	if patch.AssistantBehavior != nil {
		instr.AssistantBehavior = *patch.AssistantBehavior
	}
	if patch.Commands != nil {
		commands := make([]chat.CustomCommand, len(*patch.Commands))
		for i, cmd := range *patch.Commands {
			commands[i] = normalizeCommand(cmd)
		}
		instr.Commands = commands
	}
	if patch.Active != nil {
		instr.Active = *patch.Active
	}

	return s.save(ctx, userID, instr, "custom instructions updated")
}

// AddCommand appends a command. A leading "/" is stripped.
func (s *Service) AddCommand(ctx context.Context, userID string, req AddCommandRequest) (chat.CustomInstruction, error) {
	cmd := normalizeCommand(chat.CustomCommand{Command: req.Command, Description: req.Description})
	if err := validateCommand("", cmd); err != nil {
		return chat.CustomInstruction{}, err
	}

	instr, err := s.repo.Ensure(ctx, userID)
	if err != nil {
		return chat.CustomInstruction{}, err
	}

	instr.Commands = append(instr.Commands, cmd)
	return s.save(ctx, userID, instr, "custom command added", slog.String("command", cmd.Command))
}

// RemoveCommand deletes the command at index.
func (s *Service) RemoveCommand(ctx context.Context, userID string, index int) (chat.CustomInstruction, error) {
	instr, err := s.repo.Ensure(ctx, userID)
	if err != nil {
		return chat.CustomInstruction{}, err
	}

	if index < 0 || index >= len(instr.Commands) {
		return chat.CustomInstruction{}, ErrCommandNotFound
	}

	removed := instr.Commands[index]
	commands := make([]chat.CustomCommand, 0, len(instr.Commands)-1)
	commands = append(commands, instr.Commands[:index]...)
	instr.Commands = append(commands, instr.Commands[index+1:]...)

	return s.save(ctx, userID, instr, "custom command removed", slog.String("command", removed.Command))
}

// Toggle flips the active flag.
func (s *Service) Toggle(ctx context.Context, userID string) (chat.CustomInstruction, error) {
	instr, err := s.repo.Ensure(ctx, userID)
	if err != nil {
		return chat.CustomInstruction{}, err
	}

	instr.Active = !instr.Active
	return s.save(ctx, userID, instr, "custom instructions toggled", slog.Bool("active", instr.Active))
}

func (s *Service) save(ctx context.Context, userID string, instr chat.CustomInstruction, msg string, attrs ...any) (chat.CustomInstruction, error) {
	saved, err := s.repo.Save(ctx, userID, instr)
	if err != nil {
		return chat.CustomInstruction{}, err
	}

	s.logger.WithContext(ctx).Info(msg, attrs...)
	return saved, nil
}

func normalizeCommand(cmd chat.CustomCommand) chat.CustomCommand {
	return chat.CustomCommand{
		Command:     strings.TrimPrefix(strings.TrimSpace(cmd.Command), "/"),
		Description: strings.TrimSpace(cmd.Description),
	}
}

func validatePatch(patch Patch) error {
	if patch.AboutYou != nil && utf8.RuneCountInString(*patch.AboutYou) > MaxTextLength {
		return &ValidationError{Field: "about_you", Message: "must be at most 2000 characters"}
	}
	if patch.AssistantBehavior != nil && utf8.RuneCountInString(*patch.AssistantBehavior) > MaxTextLength {
		return &ValidationError{Field: "assistant_behavior", Message: "must be at most 2000 characters"}
	}
	if patch.Commands != nil {
		for _, cmd := range *patch.Commands {
			if err := validateCommand("custom_commands.", normalizeCommand(cmd)); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateCommand(prefix string, cmd chat.CustomCommand) error {
	switch {
	case cmd.Command == "":
		return &ValidationError{Field: prefix + "command", Message: "is required"}
	case strings.ContainsFunc(cmd.Command, unicode.IsSpace):
		return &ValidationError{Field: prefix + "command", Message: "must be a single word"}
	case utf8.RuneCountInString(cmd.Command) > MaxCommandLength:
		return &ValidationError{Field: prefix + "command", Message: "must be at most 50 characters"}
	case cmd.Description == "":
		return &ValidationError{Field: prefix + "description", Message: "is required"}
	case utf8.RuneCountInString(cmd.Description) > MaxDescriptionLength:
		return &ValidationError{Field: prefix + "description", Message: "must be at most 500 characters"}
	}
	return nil
}
