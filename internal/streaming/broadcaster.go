package streaming

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eternisai/enchanted-chat/internal/logger"
)

// Broadcaster fans conversation events out to every watcher, on this instance or others.
type Broadcaster interface {
	Publish(ctx context.Context, conversationID string, event Event) error
	// Subscribe registers a watcher. The subscription ends when ctx is done or Close is called.
	Subscribe(ctx context.Context, conversationID string) (*Subscription, error)
	Close() error
}

// stamp fills the fields every published event carries.
func stamp(conversationID string, event Event) Event {
	event.ConversationID = conversationID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.InstanceID == "" {
		event.InstanceID = logger.GetInstanceID()
	}
	return event
}

// LocalHub is an in-process Broadcaster used when no NATS server is configured.
type LocalHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscription
	closed      bool
	bufferSize  int
	logger      *logger.Logger
}

func NewLocalHub(log *logger.Logger) *LocalHub {
	return &LocalHub{
		subscribers: make(map[string]map[string]*Subscription),
		bufferSize:  DefaultBufferSize,
		logger:      log.WithComponent("local-hub"),
	}
}

func (h *LocalHub) Publish(ctx context.Context, conversationID string, event Event) error {
	event = stamp(conversationID, event)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers[conversationID] {
		if !sub.deliver(event) {
			h.logger.Warn("subscriber channel full, dropping event",
				slog.String("subscriber_id", sub.ID),
				slog.String("conversation_id", conversationID),
				slog.String("type", string(event.Type)))
		}
	}
	return nil
}

func (h *LocalHub) Subscribe(ctx context.Context, conversationID string) (*Subscription, error) {
	sub := newSubscription(conversationID, h.bufferSize)
	sub.unsubscribe = func() { h.remove(sub) }

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrBroadcasterClosed
	}
	if h.subscribers[conversationID] == nil {
		h.subscribers[conversationID] = make(map[string]*Subscription)
	}
	h.subscribers[conversationID][sub.ID] = sub
	count := len(h.subscribers[conversationID])
	h.mu.Unlock()

	h.logger.Debug("subscriber added",
		slog.String("subscriber_id", sub.ID),
		slog.String("conversation_id", conversationID),
		slog.Int("total_subscribers", count))

	sub.closeOnDone(ctx)

	return sub, nil
}

// SubscriberCount returns the number of watchers of a conversation.
func (h *LocalHub) SubscriberCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[conversationID])
}

func (h *LocalHub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[sub.ConversationID]
	delete(subs, sub.ID)
	if len(subs) == 0 {
		delete(h.subscribers, sub.ConversationID)
	}
}

func (h *LocalHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.subscribers = make(map[string]map[string]*Subscription)
	return nil
}
