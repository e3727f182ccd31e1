// source: request_logs.sql

package pgdb

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const createRequestLog = `-- name: CreateRequestLog :exec
INSERT INTO request_logs (
    user_id, conversation_id, endpoint, model, provider, temperature,
    prompt_tokens, completion_tokens, total_tokens, latency_ms, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

type CreateRequestLogParams struct {
	UserID           string          `json:"user_id"`
	ConversationID   uuid.NullUUID   `json:"conversation_id"`
	Endpoint         string          `json:"endpoint"`
	Model            *string         `json:"model"`
	Provider         string          `json:"provider"`
	Temperature      sql.NullFloat64 `json:"temperature"`
	PromptTokens     sql.NullInt32   `json:"prompt_tokens"`
	CompletionTokens sql.NullInt32   `json:"completion_tokens"`
	TotalTokens      sql.NullInt32   `json:"total_tokens"`
	LatencyMs        int32           `json:"latency_ms"`
	Status           string          `json:"status"`
}

func (q *Queries) CreateRequestLog(ctx context.Context, arg CreateRequestLogParams) error {
	_, err := q.db.ExecContext(ctx, createRequestLog,
		arg.UserID,
		arg.ConversationID,
		arg.Endpoint,
		arg.Model,
		arg.Provider,
		arg.Temperature,
		arg.PromptTokens,
		arg.CompletionTokens,
		arg.TotalTokens,
		arg.LatencyMs,
		arg.Status,
	)
	return err
}
