package conversations

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/eternisai/enchanted-chat/internal/streaming"
	"github.com/google/uuid"
)

// TitleStore writes titles and announces them to watchers. It serves both
// explicit requests and the background title queue.
type TitleStore struct {
	repo        Repository
	broadcaster streaming.Broadcaster
	logger      *logger.Logger
}

func NewTitleStore(repo Repository, broadcaster streaming.Broadcaster, log *logger.Logger) *TitleStore {
	return &TitleStore{
		repo:        repo,
		broadcaster: broadcaster,
		logger:      log.WithComponent("title_store"),
	}
}

// Save overwrites the title of conversation id.
func (s *TitleStore) Save(ctx context.Context, id uuid.UUID, title string) (Conversation, error) {
	conv, err := s.repo.UpdateTitle(ctx, id, title)
	if err != nil {
		return Conversation{}, err
	}

	if s.broadcaster != nil {
		event := streaming.Event{Type: streaming.EventTitle, Title: title}
		if err := s.broadcaster.Publish(ctx, id.String(), event); err != nil {
			s.logger.WithContext(ctx).Warn("failed to publish title", slog.String("error", err.Error()))
		}
	}
	return conv, nil
}

// SaveGeneratedTitle stores a title produced in the background. The
// conversation may have been deleted or reassigned since the job was queued.
func (s *TitleStore) SaveGeneratedTitle(ctx context.Context, userID, conversationID, title string) error {
	id, err := uuid.Parse(conversationID)
	if err != nil {
		return fmt.Errorf("invalid conversation id %q: %w", conversationID, err)
	}

	conv, err := s.repo.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if conv.UserID != userID {
		return ErrNotOwned
	}

	_, err = s.Save(ctx, id, title)
	return err
}
