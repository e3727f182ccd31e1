package conversations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/eternisai/enchanted-chat/internal/chat"
	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/eternisai/enchanted-chat/internal/streaming"
	"github.com/eternisai/enchanted-chat/internal/title_generation"
	"github.com/google/uuid"
)

// Dispatcher runs upstream turns. *chat.Dispatcher satisfies it.
type Dispatcher interface {
	DefaultModel() string
	Send(ctx context.Context, user chat.User, history []chat.Message, model string, temperature float64) (string, error)
	Stream(ctx context.Context, user chat.User, history []chat.Message, model string, temperature float64) (*chat.Stream, error)
}

// TitleSynthesizer produces a title from a first exchange. It never fails.
type TitleSynthesizer interface {
	Synthesize(ctx context.Context, user chat.User, firstUserMessage, firstAssistantMessage, model string) string
}

// TitleQueue schedules background title generation.
type TitleQueue interface {
	Enqueue(ctx context.Context, job title_generation.Job) bool
}

// PreferenceStore remembers the last model a user picked.
type PreferenceStore interface {
	SetPreferredModel(ctx context.Context, userID, model string) error
}

// ChunkSink receives assistant deltas as they arrive.
type ChunkSink interface {
	WriteChunk(content string) error
}

// Config holds service settings.
type Config struct {
	Temperature float64
}

type Service struct {
	repo        Repository
	dispatcher  Dispatcher
	titles      TitleSynthesizer
	titleStore  *TitleStore
	queue       TitleQueue
	preferences PreferenceStore
	broadcaster streaming.Broadcaster
	logger      *logger.Logger
	temperature float64
}

// NewService creates a conversation service. queue may be nil, in which case
// clients request titles explicitly.
func NewService(repo Repository, dispatcher Dispatcher, titles TitleSynthesizer, queue TitleQueue, preferences PreferenceStore, broadcaster streaming.Broadcaster, log *logger.Logger, cfg Config) *Service {
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = chat.DefaultTemperature
	}

	return &Service{
		repo:        repo,
		dispatcher:  dispatcher,
		titles:      titles,
		titleStore:  NewTitleStore(repo, broadcaster, log),
		queue:       queue,
		preferences: preferences,
		broadcaster: broadcaster,
		logger:      log.WithComponent("conversations"),
		temperature: temperature,
	}
}

// List returns the user's conversations, most recently updated first.
func (s *Service) List(ctx context.Context, user chat.User) ([]Summary, error) {
	return s.repo.ListConversations(ctx, user.ID)
}

// Get returns an owned conversation with its ordered history.
func (s *Service) Get(ctx context.Context, user chat.User, id uuid.UUID) (Detail, error) {
	conv, err := s.owned(ctx, user, id)
	if err != nil {
		return Detail{}, err
	}

	messages, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Conversation: conv, Messages: messages}, nil
}

// Create starts a conversation. The model falls back to the user's preferred
// model and then to the default model.
func (s *Service) Create(ctx context.Context, user chat.User, model string) (Conversation, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = user.PreferredModel
	}
	if model == "" {
		model = s.dispatcher.DefaultModel()
	}

	conv, err := s.repo.CreateConversation(ctx, user.ID, model)
	if err != nil {
		return Conversation{}, err
	}

	s.logger.WithContext(ctx).Info("conversation created",
		slog.String("conversation_id", conv.ID.String()),
		slog.String("model", model))
	return conv, nil
}

// UpdateModel switches the conversation model and records it as the user's preference.
func (s *Service) UpdateModel(ctx context.Context, user chat.User, id uuid.UUID, model string) (Conversation, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return Conversation{}, &ValidationError{Field: "model", Message: "model is required"}
	}

	if _, err := s.owned(ctx, user, id); err != nil {
		return Conversation{}, err
	}

	conv, err := s.repo.UpdateModel(ctx, id, model)
	if err != nil {
		return Conversation{}, err
	}

	if s.preferences != nil {
		if err := s.preferences.SetPreferredModel(ctx, user.ID, model); err != nil {
			s.logger.WithContext(ctx).Warn("failed to store preferred model",
				slog.String("error", err.Error()),
				slog.String("model", model))
		}
	}
	return conv, nil
}

// Rename sets a user-chosen title.
func (s *Service) Rename(ctx context.Context, user chat.User, id uuid.UUID, title string) (Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Conversation{}, &ValidationError{Field: "title", Message: "title is required"}
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return Conversation{}, &ValidationError{Field: "title", Message: fmt.Sprintf("title must be at most %d characters", MaxTitleLength)}
	}

	if _, err := s.owned(ctx, user, id); err != nil {
		return Conversation{}, err
	}
	return s.titleStore.Save(ctx, id, title)
}

// Delete removes a conversation and its messages.
func (s *Service) Delete(ctx context.Context, user chat.User, id uuid.UUID) error {
	if _, err := s.owned(ctx, user, id); err != nil {
		return err
	}

	if err := s.repo.DeleteConversation(ctx, id); err != nil {
		return err
	}

	s.logger.WithContext(ctx).Info("conversation deleted", slog.String("conversation_id", id.String()))
	return nil
}

// PostMessage stores the user message, runs a non-streaming turn and stores the
// reply. A failed turn leaves no trace of the user message.
func (s *Service) PostMessage(ctx context.Context, user chat.User, id uuid.UUID, content string) (Exchange, error) {
	conv, userMsg, history, err := s.begin(ctx, user, id, content)
	if err != nil {
		return Exchange{}, err
	}
	ctx = logger.WithConversationID(ctx, id.String())

	reply, err := s.dispatcher.Send(ctx, user, history, conv.Model, s.temperature)
	if err != nil {
		s.rollback(ctx, userMsg)
		return Exchange{}, err
	}

	return s.finish(ctx, user, conv, userMsg, reply)
}

// StreamMessage is PostMessage with the reply delivered incrementally to sink.
// The user message is rolled back only when the turn fails before any content
// arrived; a reply interrupted later is stored as far as it got.
func (s *Service) StreamMessage(ctx context.Context, user chat.User, id uuid.UUID, content string, sink ChunkSink) (Exchange, error) {
	conv, userMsg, history, err := s.begin(ctx, user, id, content)
	if err != nil {
		return Exchange{}, err
	}
	ctx = logger.WithConversationID(ctx, id.String())
	log := s.logger.WithContext(ctx)

	stream, err := s.dispatcher.Stream(ctx, user, history, conv.Model, s.temperature)
	if err != nil {
		s.rollback(ctx, userMsg)
		return Exchange{}, err
	}
	defer stream.Close()

	var reply strings.Builder
	var streamErr error
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			streamErr = err
			break
		}

		reply.WriteString(chunk)
		s.publish(ctx, id, streaming.Event{Type: streaming.EventChunk, Content: chunk})

		if err := sink.WriteChunk(chunk); err != nil {
			streamErr = fmt.Errorf("failed to write chunk: %w", err)
			break
		}
	}

	if streamErr != nil && reply.Len() == 0 {
		s.rollback(ctx, userMsg)
		return Exchange{}, streamErr
	}
	if streamErr != nil {
		log.Warn("stream interrupted, keeping partial reply",
			slog.String("error", streamErr.Error()),
			slog.Int("reply_length", reply.Len()))
	}

	// The client may be gone; the reply is stored regardless.
	exchange, err := s.finish(context.WithoutCancel(ctx), user, conv, userMsg, reply.String())
	if err != nil {
		return Exchange{}, err
	}
	return exchange, streamErr
}

// GenerateTitle synthesizes a title from the first two messages and overwrites
// the current one.
func (s *Service) GenerateTitle(ctx context.Context, user chat.User, id uuid.UUID) (Conversation, error) {
	conv, err := s.owned(ctx, user, id)
	if err != nil {
		return Conversation{}, err
	}

	messages, err := s.repo.FirstMessages(ctx, id, 2)
	if err != nil {
		return Conversation{}, err
	}
	if len(messages) < 2 {
		return Conversation{}, ErrNotEnoughMessages
	}

	ctx = logger.WithConversationID(ctx, id.String())
	title := s.titles.Synthesize(ctx, user, messages[0].Content, messages[1].Content, conv.Model)

	return s.titleStore.Save(ctx, id, title)
}

// begin validates the input, stores the user message and loads the history
// that includes it.
func (s *Service) begin(ctx context.Context, user chat.User, id uuid.UUID, content string) (Conversation, Message, []chat.Message, error) {
	if strings.TrimSpace(content) == "" {
		return Conversation{}, Message{}, nil, &ValidationError{Field: "content", Message: "content is required"}
	}

	conv, err := s.owned(ctx, user, id)
	if err != nil {
		return Conversation{}, Message{}, nil, err
	}

	userMsg, err := s.repo.AddMessage(ctx, id, chat.RoleUser, content)
	if err != nil {
		return Conversation{}, Message{}, nil, err
	}

	if err := s.repo.TouchConversation(ctx, id); err != nil {
		s.logger.WithContext(ctx).Warn("failed to touch conversation", slog.String("error", err.Error()))
	}

	messages, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		s.rollback(ctx, userMsg)
		return Conversation{}, Message{}, nil, err
	}

	s.publishMessage(ctx, userMsg)
	return conv, userMsg, toHistory(messages), nil
}

// finish stores the assistant reply and decides whether the conversation needs a title.
func (s *Service) finish(ctx context.Context, user chat.User, conv Conversation, userMsg Message, reply string) (Exchange, error) {
	log := s.logger.WithContext(ctx)

	assistantMsg, err := s.repo.AddMessage(ctx, conv.ID, chat.RoleAssistant, reply)
	if err != nil {
		s.rollback(ctx, userMsg)
		return Exchange{}, err
	}
	s.publishMessage(ctx, assistantMsg)

	exchange := Exchange{UserMessage: userMsg, AssistantMessage: assistantMsg}

	count, err := s.repo.CountMessages(ctx, conv.ID)
	if err != nil {
		log.Warn("failed to count messages", slog.String("error", err.Error()))
		return exchange, nil
	}
	if count != 2 || conv.Title != "" {
		return exchange, nil
	}

	exchange.ShouldGenerateTitle = true
	if s.queue != nil {
		queued := s.queue.Enqueue(ctx, title_generation.Job{
			Request: title_generation.Request{
				User:                  user,
				FirstUserMessage:      userMsg.Content,
				FirstAssistantMessage: reply,
				Model:                 conv.Model,
			},
			ConversationID: conv.ID.String(),
		})
		// A queued title arrives as a title event; the client need not ask.
		exchange.ShouldGenerateTitle = !queued
	}
	return exchange, nil
}

// owned loads a conversation and checks that user owns it.
func (s *Service) owned(ctx context.Context, user chat.User, id uuid.UUID) (Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	if conv.UserID != user.ID {
		s.logger.WithContext(ctx).Warn("conversation access denied",
			slog.String("conversation_id", id.String()),
			slog.String("owner_id", conv.UserID))
		return Conversation{}, ErrNotOwned
	}
	return conv, nil
}

// rollback deletes a user message whose turn failed.
func (s *Service) rollback(ctx context.Context, msg Message) {
	if err := s.repo.DeleteMessage(context.WithoutCancel(ctx), msg.ID); err != nil {
		s.logger.WithContext(ctx).Error("failed to roll back user message",
			slog.String("error", err.Error()),
			slog.String("message_id", msg.ID.String()))
		return
	}

	s.publish(context.WithoutCancel(ctx), msg.ConversationID, streaming.Event{
		Type:      streaming.EventError,
		MessageID: msg.ID.String(),
		Reason:    "message_rolled_back",
	})
}

func (s *Service) publishMessage(ctx context.Context, msg Message) {
	s.publish(ctx, msg.ConversationID, streaming.Event{
		Type:      streaming.EventMessage,
		MessageID: msg.ID.String(),
		Content:   msg.Content,
		Data:      map[string]interface{}{"role": string(msg.Role)},
	})
}

func (s *Service) publish(ctx context.Context, id uuid.UUID, event streaming.Event) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Publish(ctx, id.String(), event); err != nil {
		s.logger.WithContext(ctx).Warn("failed to publish event",
			slog.String("error", err.Error()),
			slog.String("event_type", string(event.Type)))
	}
}
