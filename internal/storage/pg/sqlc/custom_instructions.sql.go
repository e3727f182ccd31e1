// source: custom_instructions.sql

package pgdb

import (
	"context"
	"encoding/json"
)

const ensureCustomInstruction = `-- name: EnsureCustomInstruction :one
INSERT INTO custom_instructions (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING id, user_id, about_you, assistant_behavior, custom_commands, is_active, created_at, updated_at
`

func (q *Queries) EnsureCustomInstruction(ctx context.Context, userID string) (CustomInstruction, error) {
	row := q.db.QueryRowContext(ctx, ensureCustomInstruction, userID)
	var i CustomInstruction
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.AboutYou,
		&i.AssistantBehavior,
		&i.CustomCommands,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getCustomInstruction = `-- name: GetCustomInstruction :one
SELECT id, user_id, about_you, assistant_behavior, custom_commands, is_active, created_at, updated_at FROM custom_instructions
WHERE user_id = $1
`

func (q *Queries) GetCustomInstruction(ctx context.Context, userID string) (CustomInstruction, error) {
	row := q.db.QueryRowContext(ctx, getCustomInstruction, userID)
	var i CustomInstruction
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.AboutYou,
		&i.AssistantBehavior,
		&i.CustomCommands,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateCustomInstruction = `-- name: UpdateCustomInstruction :one
UPDATE custom_instructions
SET about_you = $2,
    assistant_behavior = $3,
    custom_commands = $4,
    is_active = $5,
    updated_at = NOW()
WHERE user_id = $1
RETURNING id, user_id, about_you, assistant_behavior, custom_commands, is_active, created_at, updated_at
`

type UpdateCustomInstructionParams struct {
	UserID            string          `json:"user_id"`
	AboutYou          string          `json:"about_you"`
	AssistantBehavior string          `json:"assistant_behavior"`
	CustomCommands    json.RawMessage `json:"custom_commands"`
	IsActive          bool            `json:"is_active"`
}

func (q *Queries) UpdateCustomInstruction(ctx context.Context, arg UpdateCustomInstructionParams) (CustomInstruction, error) {
	row := q.db.QueryRowContext(ctx, updateCustomInstruction,
		arg.UserID,
		arg.AboutYou,
		arg.AssistantBehavior,
		string(arg.CustomCommands),
		arg.IsActive,
	)
	var i CustomInstruction
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.AboutYou,
		&i.AssistantBehavior,
		&i.CustomCommands,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
