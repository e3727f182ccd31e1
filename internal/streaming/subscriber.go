package streaming

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Subscription receives the events published for one conversation.
//
// Ch is never closed: readers should stop on their own context. Sends are
// non-blocking, so a slow reader loses events instead of stalling publishers.
type Subscription struct {
	ID             string
	ConversationID string
	Ch             chan Event

	done        chan struct{}
	once        sync.Once
	unsubscribe func()
}

func newSubscription(conversationID string, bufferSize int) *Subscription {
	if bufferSize < 10 {
		bufferSize = 10
	}
	if bufferSize > 1000 {
		bufferSize = 1000
	}

	return &Subscription{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Ch:             make(chan Event, bufferSize),
		done:           make(chan struct{}),
	}
}

// deliver reports false when the buffer is full and the event was dropped.
func (s *Subscription) deliver(event Event) bool {
	select {
	case s.Ch <- event:
		return true
	default:
		return false
	}
}

// Close stops delivery. Safe to call multiple times.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	})
}

// Done is closed once the subscription has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// closeOnDone ends the subscription when ctx is cancelled.
func (s *Subscription) closeOnDone(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
}
