package title_generation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/eternisai/enchanted-chat/internal/chat"
)

type memoryStore struct {
	mu     sync.Mutex
	titles map[string]string
	err    error
}

func (m *memoryStore) SaveGeneratedTitle(ctx context.Context, userID, conversationID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.titles == nil {
		m.titles = make(map[string]string)
	}
	m.titles[conversationID] = title
	return nil
}

func TestServiceProcessesQueuedJobsBeforeShutdown(t *testing.T) {
	sender := &scriptedSender{replies: []string{"First Title", "Second Title"}}
	store := &memoryStore{}
	svc := NewService(newTestGenerator(sender), store, testLogger, 1)

	for _, id := range []string{"c1", "c2"} {
		ok := svc.Enqueue(context.Background(), Job{
			Request:        Request{User: chat.User{ID: "u1"}, FirstUserMessage: "Hello", FirstAssistantMessage: "Hi"},
			ConversationID: id,
		})
		if !ok {
			t.Fatalf("expected job %s to be queued", id)
		}
	}

	svc.Shutdown()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.titles) != 2 {
		t.Fatalf("expected 2 stored titles, got %v", store.titles)
	}
	if store.titles["c1"] == "" || store.titles["c2"] == "" {
		t.Errorf("missing titles: %v", store.titles)
	}
}

func TestServiceRejectsAfterShutdown(t *testing.T) {
	svc := NewService(newTestGenerator(&scriptedSender{}), &memoryStore{}, testLogger, 1)
	svc.Shutdown()
	svc.Shutdown()

	if svc.Enqueue(context.Background(), Job{ConversationID: "c1"}) {
		t.Error("expected enqueue to fail after shutdown")
	}
}

func TestServiceStoreFailureIsLogged(t *testing.T) {
	store := &memoryStore{err: errors.New("db down")}
	svc := NewService(newTestGenerator(&scriptedSender{replies: []string{"Some Title"}}), store, testLogger, 1)

	svc.Enqueue(context.Background(), Job{ConversationID: "c1"})
	svc.Shutdown()

	if len(store.titles) != 0 {
		t.Errorf("expected nothing stored, got %v", store.titles)
	}
}
