package users

import (
	"context"
	"log/slog"

	"github.com/eternisai/enchanted-chat/internal/auth"
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
		logger: log.WithComponent("users"),
	}
}

// Resolve records the token identity and returns the chat user it maps to.
func (s *Service) Resolve(ctx context.Context, identity auth.Identity) (chat.User, error) {
	record, err := s.repo.Upsert(ctx, identity)
	if err != nil {
		return chat.User{}, err
	}

	return chat.User{
		ID:             record.ID,
		Name:           displayName(record),
		PreferredModel: record.PreferredModel,
	}, nil
}

// SetPreferredModel remembers the last model the user picked.
func (s *Service) SetPreferredModel(ctx context.Context, userID, model string) error {
	if err := s.repo.SetPreferredModel(ctx, userID, model); err != nil {
		return err
	}

	s.logger.WithContext(ctx).Debug("preferred model updated", slog.String("model", model))
	return nil
}

func displayName(r Record) string {
	return auth.Identity{UserID: r.ID, Email: r.Email, Name: r.Name}.DisplayName()
}
