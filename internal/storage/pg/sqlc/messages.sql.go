// source: messages.sql

package pgdb

import (
	"context"

	"github.com/google/uuid"
)

const countMessagesByConversation = `-- name: CountMessagesByConversation :one
SELECT COUNT(*) FROM messages WHERE conversation_id = $1
`

func (q *Queries) CountMessagesByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countMessagesByConversation, conversationID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createMessage = `-- name: CreateMessage :one
INSERT INTO messages (id, conversation_id, role, content)
VALUES ($1, $2, $3, $4)
RETURNING id, seq, conversation_id, role, content, created_at
`

type CreateMessageParams struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
}

func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	row := q.db.QueryRowContext(ctx, createMessage,
		arg.ID,
		arg.ConversationID,
		arg.Role,
		arg.Content,
	)
	var i Message
	err := row.Scan(
		&i.ID,
		&i.Seq,
		&i.ConversationID,
		&i.Role,
		&i.Content,
		&i.CreatedAt,
	)
	return i, err
}

const deleteMessage = `-- name: DeleteMessage :exec
DELETE FROM messages WHERE id = $1
`

func (q *Queries) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteMessage, id)
	return err
}

const listFirstMessages = `-- name: ListFirstMessages :many
SELECT id, seq, conversation_id, role, content, created_at FROM messages
WHERE conversation_id = $1
ORDER BY created_at ASC, seq ASC
LIMIT $2
`

type ListFirstMessagesParams struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Limit          int32     `json:"limit"`
}

func (q *Queries) ListFirstMessages(ctx context.Context, arg ListFirstMessagesParams) ([]Message, error) {
	rows, err := q.db.QueryContext(ctx, listFirstMessages, arg.ConversationID, arg.Limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

const listMessagesByConversation = `-- name: ListMessagesByConversation :many
SELECT id, seq, conversation_id, role, content, created_at FROM messages
WHERE conversation_id = $1
ORDER BY created_at ASC, seq ASC
`

func (q *Queries) ListMessagesByConversation(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := q.db.QueryContext(ctx, listMessagesByConversation, conversationID)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}
