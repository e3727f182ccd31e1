package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/nats-io/nats.go"
)

// subjectPrefix namespaces conversation events on the NATS bus.
const subjectPrefix = "chat."

// Subject returns the NATS subject of a conversation.
func Subject(conversationID string) string {
	return subjectPrefix + conversationID
}

// Connect opens a NATS connection that reconnects forever.
func Connect(url string, log *logger.Logger) (*nats.Conn, error) {
	log = log.WithComponent("nats")

	nc, err := nats.Connect(url,
		nats.Name("enchanted-chat-"+logger.GetInstanceID()),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	log.Info("connected to nats", slog.String("url", nc.ConnectedUrl()))
	return nc, nil
}

// NATSBroadcaster relays conversation events across instances through NATS core pub/sub.
type NATSBroadcaster struct {
	nc         *nats.Conn
	bufferSize int
	logger     *logger.Logger
}

func NewNATSBroadcaster(nc *nats.Conn, log *logger.Logger) *NATSBroadcaster {
	return &NATSBroadcaster{
		nc:         nc,
		bufferSize: DefaultBufferSize,
		logger:     log.WithComponent("nats-broadcaster"),
	}
}

func (b *NATSBroadcaster) Publish(ctx context.Context, conversationID string, event Event) error {
	data, err := json.Marshal(stamp(conversationID, event))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.nc.Publish(Subject(conversationID), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (b *NATSBroadcaster) Subscribe(ctx context.Context, conversationID string) (*Subscription, error) {
	sub := newSubscription(conversationID, b.bufferSize)

	natsSub, err := b.nc.Subscribe(Subject(conversationID), b.handler(sub))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Subject(conversationID), err)
	}

	sub.unsubscribe = func() {
		if err := natsSub.Unsubscribe(); err != nil && !isClosedError(err) {
			b.logger.Warn("failed to unsubscribe",
				slog.String("subject", natsSub.Subject),
				slog.String("error", err.Error()))
		}
	}
	sub.closeOnDone(ctx)

	return sub, nil
}

func (b *NATSBroadcaster) handler(sub *Subscription) nats.MsgHandler {
	return func(msg *nats.Msg) {
		event, err := decodeEvent(msg.Data)
		if err != nil {
			b.logger.Warn("received invalid event",
				slog.String("subject", msg.Subject),
				slog.String("error", err.Error()))
			return
		}

		if !sub.deliver(event) {
			b.logger.Warn("subscriber channel full, dropping event",
				slog.String("subscriber_id", sub.ID),
				slog.String("conversation_id", sub.ConversationID),
				slog.String("type", string(event.Type)))
		}
	}
}

// Close drains pending messages and closes the connection.
func (b *NATSBroadcaster) Close() error {
	if err := b.nc.Drain(); err != nil {
		return fmt.Errorf("failed to drain nats connection: %w", err)
	}
	return nil
}

func decodeEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	if event.Type == "" {
		return Event{}, fmt.Errorf("event has no type")
	}
	return event, nil
}

func isClosedError(err error) bool {
	return errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConnectionDraining) ||
		errors.Is(err, nats.ErrBadSubscription)
}
