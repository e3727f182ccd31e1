package pgdb

import (
	"context"

	"github.com/google/uuid"
)

type Querier interface {
	CountMessagesByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error)
	CreateConversation(ctx context.Context, arg CreateConversationParams) (Conversation, error)
	CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error)
	CreateRequestLog(ctx context.Context, arg CreateRequestLogParams) error
	DeleteConversation(ctx context.Context, id uuid.UUID) error
	DeleteMessage(ctx context.Context, id uuid.UUID) error
	EnsureCustomInstruction(ctx context.Context, userID string) (CustomInstruction, error)
	GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error)
	GetCustomInstruction(ctx context.Context, userID string) (CustomInstruction, error)
	GetUser(ctx context.Context, id string) (User, error)
	ListConversationsByUser(ctx context.Context, userID string) ([]ListConversationsByUserRow, error)
	ListFirstMessages(ctx context.Context, arg ListFirstMessagesParams) ([]Message, error)
	ListMessagesByConversation(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
	SetUserPreferredModel(ctx context.Context, arg SetUserPreferredModelParams) error
	TouchConversation(ctx context.Context, id uuid.UUID) error
	UpdateConversationModel(ctx context.Context, arg UpdateConversationModelParams) (Conversation, error)
	UpdateConversationTitle(ctx context.Context, arg UpdateConversationTitleParams) (Conversation, error)
	UpdateCustomInstruction(ctx context.Context, arg UpdateCustomInstructionParams) (CustomInstruction, error)
	UpsertUser(ctx context.Context, arg UpsertUserParams) (User, error)
}

var _ Querier = (*Queries)(nil)
