// source: conversations.sql

package pgdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const createConversation = `-- name: CreateConversation :one
INSERT INTO conversations (id, user_id, model)
VALUES ($1, $2, $3)
RETURNING id, user_id, model, title, created_at, updated_at
`

type CreateConversationParams struct {
	ID     uuid.UUID `json:"id"`
	UserID string    `json:"user_id"`
	Model  string    `json:"model"`
}

func (q *Queries) CreateConversation(ctx context.Context, arg CreateConversationParams) (Conversation, error) {
	row := q.db.QueryRowContext(ctx, createConversation, arg.ID, arg.UserID, arg.Model)
	var i Conversation
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Model,
		&i.Title,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteConversation = `-- name: DeleteConversation :exec
DELETE FROM conversations WHERE id = $1
`

func (q *Queries) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteConversation, id)
	return err
}

const getConversation = `-- name: GetConversation :one
SELECT id, user_id, model, title, created_at, updated_at FROM conversations
WHERE id = $1
`

func (q *Queries) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	row := q.db.QueryRowContext(ctx, getConversation, id)
	var i Conversation
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Model,
		&i.Title,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listConversationsByUser = `-- name: ListConversationsByUser :many
SELECT c.id, c.user_id, c.model, c.title, c.created_at, c.updated_at,
       m.content AS last_message, m.created_at AS last_message_at
FROM conversations c
LEFT JOIN LATERAL (
    SELECT content, created_at FROM messages
    WHERE conversation_id = c.id
    ORDER BY created_at DESC, seq DESC
    LIMIT 1
) m ON TRUE
WHERE c.user_id = $1
ORDER BY c.updated_at DESC
`

type ListConversationsByUserRow struct {
	ID            uuid.UUID      `json:"id"`
	UserID        string         `json:"user_id"`
	Model         string         `json:"model"`
	Title         sql.NullString `json:"title"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	LastMessage   sql.NullString `json:"last_message"`
	LastMessageAt sql.NullTime   `json:"last_message_at"`
}

func (q *Queries) ListConversationsByUser(ctx context.Context, userID string) ([]ListConversationsByUserRow, error) {
	rows, err := q.db.QueryContext(ctx, listConversationsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListConversationsByUserRow
	for rows.Next() {
		var i ListConversationsByUserRow
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Model,
			&i.Title,
			&i.CreatedAt,
			&i.UpdatedAt,
			&i.LastMessage,
			&i.LastMessageAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const touchConversation = `-- name: TouchConversation :exec
UPDATE conversations SET updated_at = NOW() WHERE id = $1
`

func (q *Queries) TouchConversation(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, touchConversation, id)
	return err
}

const updateConversationModel = `-- name: UpdateConversationModel :one
UPDATE conversations
SET model = $2, updated_at = NOW()
WHERE id = $1
RETURNING id, user_id, model, title, created_at, updated_at
`

type UpdateConversationModelParams struct {
	ID    uuid.UUID `json:"id"`
	Model string    `json:"model"`
}

func (q *Queries) UpdateConversationModel(ctx context.Context, arg UpdateConversationModelParams) (Conversation, error) {
	row := q.db.QueryRowContext(ctx, updateConversationModel, arg.ID, arg.Model)
	var i Conversation
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Model,
		&i.Title,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateConversationTitle = `-- name: UpdateConversationTitle :one
UPDATE conversations
SET title = $2, updated_at = NOW()
WHERE id = $1
RETURNING id, user_id, model, title, created_at, updated_at
`

type UpdateConversationTitleParams struct {
	ID    uuid.UUID      `json:"id"`
	Title sql.NullString `json:"title"`
}

func (q *Queries) UpdateConversationTitle(ctx context.Context, arg UpdateConversationTitleParams) (Conversation, error) {
	row := q.db.QueryRowContext(ctx, updateConversationTitle, arg.ID, arg.Title)
	var i Conversation
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Model,
		&i.Title,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
