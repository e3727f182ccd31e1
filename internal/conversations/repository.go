package conversations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eternisai/enchanted-chat/internal/chat"
	pgdb "github.com/eternisai/enchanted-chat/internal/storage/pg/sqlc"
	"github.com/google/uuid"
)

// Repository persists conversations and their messages. Lookups of missing rows return ErrNotFound.
type Repository interface {
	ListConversations(ctx context.Context, userID string) ([]Summary, error)
	GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error)
	CreateConversation(ctx context.Context, userID, model string) (Conversation, error)
	UpdateModel(ctx context.Context, id uuid.UUID, model string) (Conversation, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) (Conversation, error)
	TouchConversation(ctx context.Context, id uuid.UUID) error
	DeleteConversation(ctx context.Context, id uuid.UUID) error

	AddMessage(ctx context.Context, conversationID uuid.UUID, role chat.Role, content string) (Message, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) error
	// ListMessages returns the history ordered by creation time.
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
	FirstMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error)
	CountMessages(ctx context.Context, conversationID uuid.UUID) (int, error)
}

type pgRepository struct {
	queries pgdb.Querier
}

// NewRepository returns a Repository backed by postgres queries.
func NewRepository(queries pgdb.Querier) Repository {
	return &pgRepository{queries: queries}
}

func (r *pgRepository) ListConversations(ctx context.Context, userID string) ([]Summary, error) {
	rows, err := r.queries.ListConversationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	summaries := make([]Summary, len(rows))
	for i, row := range rows {
		summaries[i] = Summary{
			Conversation: Conversation{
				ID:        row.ID,
				UserID:    row.UserID,
				Model:     row.Model,
				Title:     row.Title.String,
				CreatedAt: row.CreatedAt,
				UpdatedAt: row.UpdatedAt,
			},
			LastMessage: row.LastMessage.String,
		}
		if row.LastMessageAt.Valid {
			at := row.LastMessageAt.Time
			summaries[i].LastMessageAt = &at
		}
	}
	return summaries, nil
}

func (r *pgRepository) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	row, err := r.queries.GetConversation(ctx, id)
	if err != nil {
		return Conversation{}, notFound(err, "failed to get conversation")
	}
	return fromConversationRow(row), nil
}

func (r *pgRepository) CreateConversation(ctx context.Context, userID, model string) (Conversation, error) {
	row, err := r.queries.CreateConversation(ctx, pgdb.CreateConversationParams{
		ID:     uuid.New(),
		UserID: userID,
		Model:  model,
	})
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	return fromConversationRow(row), nil
}

func (r *pgRepository) UpdateModel(ctx context.Context, id uuid.UUID, model string) (Conversation, error) {
	row, err := r.queries.UpdateConversationModel(ctx, pgdb.UpdateConversationModelParams{ID: id, Model: model})
	if err != nil {
		return Conversation{}, notFound(err, "failed to update conversation model")
	}
	return fromConversationRow(row), nil
}

func (r *pgRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) (Conversation, error) {
	row, err := r.queries.UpdateConversationTitle(ctx, pgdb.UpdateConversationTitleParams{
		ID:    id,
		Title: sql.NullString{String: title, Valid: title != ""},
	})
	if err != nil {
		return Conversation{}, notFound(err, "failed to update conversation title")
	}
	return fromConversationRow(row), nil
}

func (r *pgRepository) TouchConversation(ctx context.Context, id uuid.UUID) error {
	if err := r.queries.TouchConversation(ctx, id); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

func (r *pgRepository) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	if err := r.queries.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func (r *pgRepository) AddMessage(ctx context.Context, conversationID uuid.UUID, role chat.Role, content string) (Message, error) {
	row, err := r.queries.CreateMessage(ctx, pgdb.CreateMessageParams{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           string(role),
		Content:        content,
	})
	if err != nil {
		return Message{}, fmt.Errorf("failed to create message: %w", err)
	}
	return fromMessageRow(row), nil
}

func (r *pgRepository) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	if err := r.queries.DeleteMessage(ctx, id); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (r *pgRepository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := r.queries.ListMessagesByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return fromMessageRows(rows), nil
}

func (r *pgRepository) FirstMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	rows, err := r.queries.ListFirstMessages(ctx, pgdb.ListFirstMessagesParams{
		ConversationID: conversationID,
		Limit:          int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list first messages: %w", err)
	}
	return fromMessageRows(rows), nil
}

func (r *pgRepository) CountMessages(ctx context.Context, conversationID uuid.UUID) (int, error) {
	count, err := r.queries.CountMessagesByConversation(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return int(count), nil
}

func notFound(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func fromConversationRow(row pgdb.Conversation) Conversation {
	return Conversation{
		ID:        row.ID,
		UserID:    row.UserID,
		Model:     row.Model,
		Title:     row.Title.String,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func fromMessageRow(row pgdb.Message) Message {
	return Message{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		Role:           chat.Role(row.Role),
		Content:        row.Content,
		CreatedAt:      row.CreatedAt,
	}
}

func fromMessageRows(rows []pgdb.Message) []Message {
	messages := make([]Message, len(rows))
	for i, row := range rows {
		messages[i] = fromMessageRow(row)
	}
	return messages
}
