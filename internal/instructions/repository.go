package instructions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eternisai/enchanted-chat/internal/chat"
	pgdb "github.com/eternisai/enchanted-chat/internal/storage/pg/sqlc"
)

// Repository persists one instruction record per user.
type Repository interface {
	// Get returns nil when the user has no record.
	Get(ctx context.Context, userID string) (*chat.CustomInstruction, error)
	// Ensure returns the user's record, creating the default one if needed.
	Ensure(ctx context.Context, userID string) (chat.CustomInstruction, error)
	Save(ctx context.Context, userID string, instr chat.CustomInstruction) (chat.CustomInstruction, error)
}

type pgRepository struct {
	queries pgdb.Querier
}

// NewRepository returns a Repository backed by postgres queries.
func NewRepository(queries pgdb.Querier) Repository {
	return &pgRepository{queries: queries}
}

func (r *pgRepository) Get(ctx context.Context, userID string) (*chat.CustomInstruction, error) {
	row, err := r.queries.GetCustomInstruction(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get custom instructions: %w", err)
	}

	instr, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	return &instr, nil
}

func (r *pgRepository) Ensure(ctx context.Context, userID string) (chat.CustomInstruction, error) {
	row, err := r.queries.EnsureCustomInstruction(ctx, userID)
	if err != nil {
		return chat.CustomInstruction{}, fmt.Errorf("failed to create custom instructions: %w", err)
	}
	return fromRow(row)
}

func (r *pgRepository) Save(ctx context.Context, userID string, instr chat.CustomInstruction) (chat.CustomInstruction, error) {
	commands := instr.Commands
	if commands == nil {
		commands = []chat.CustomCommand{}
	}
	encoded, err := json.Marshal(commands)
	if err != nil {
		return chat.CustomInstruction{}, fmt.Errorf("failed to encode custom commands: %w", err)
	}

	row, err := r.queries.UpdateCustomInstruction(ctx, pgdb.UpdateCustomInstructionParams{
		UserID:            userID,
		AboutYou:          instr.AboutYou,
		AssistantBehavior: instr.AssistantBehavior,
		CustomCommands:    encoded,
		IsActive:          instr.Active,
	})
	if err != nil {
		return chat.CustomInstruction{}, fmt.Errorf("failed to update custom instructions: %w", err)
	}
	return fromRow(row)
}

func fromRow(row pgdb.CustomInstruction) (chat.CustomInstruction, error) {
	instr := chat.CustomInstruction{
		AboutYou:          row.AboutYou,
		AssistantBehavior: row.AssistantBehavior,
		Commands:          []chat.CustomCommand{},
		Active:            row.IsActive,
	}

	if len(row.CustomCommands) > 0 && string(row.CustomCommands) != "null" {
		if err := json.Unmarshal(row.CustomCommands, &instr.Commands); err != nil {
			return chat.CustomInstruction{}, fmt.Errorf("failed to decode custom commands: %w", err)
		}
	}
	return instr, nil
}
