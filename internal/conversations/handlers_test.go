package conversations

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eternisai/enchanted-chat/internal/catalog"
	"github.com/eternisai/enchanted-chat/internal/chat"
	"github.com/eternisai/enchanted-chat/internal/streaming"
	"github.com/eternisai/enchanted-chat/internal/users"
	"github.com/gin-gonic/gin"
)

type fakeModels struct {
	err error
}

func (f fakeModels) Models(ctx context.Context) ([]catalog.ModelDescriptor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []catalog.ModelDescriptor{{ID: testModel, Name: "Mistral 7B Instruct (free)"}}, nil
}

func newTestRouter(env *testEnv, user chat.User, limits ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	group := router.Group("/api/v1")
	group.Use(func(c *gin.Context) {
		users.SetUser(c, user)
	})
	NewHandler(env.service, fakeModels{}, env.hub, testLogger).RegisterRoutes(group, limits...)
	return router
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChatLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	router := newTestRouter(env, alice)

	w := doJSON(router, http.MethodPost, "/api/v1/chats", `{}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var conv Conversation
	if err := json.Unmarshal(w.Body.Bytes(), &conv); err != nil {
		t.Fatalf("failed to decode conversation: %v", err)
	}
	base := "/api/v1/chats/" + conv.ID.String()

	env.completer.replies = []string{"Hi there", "Greeting"}
	w = doJSON(router, http.MethodPost, base+"/messages", `{"content":"Hello"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var exchange Exchange
	if err := json.Unmarshal(w.Body.Bytes(), &exchange); err != nil {
		t.Fatalf("failed to decode exchange: %v", err)
	}
	if !exchange.ShouldGenerateTitle || exchange.AssistantMessage.Content != "Hi there" {
		t.Errorf("unexpected exchange %+v", exchange)
	}

	w = doJSON(router, http.MethodPost, base+"/generate-title", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"title":"Greeting"`) {
		t.Errorf("unexpected generate-title response %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(router, http.MethodGet, base, "")
	var detail Detail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("failed to decode detail: %v", err)
	}
	if len(detail.Messages) != 2 || detail.Messages[0].Role != chat.RoleUser {
		t.Errorf("unexpected history %+v", detail.Messages)
	}

	w = doJSON(router, http.MethodGet, "/api/v1/chats", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"last_message":"Hi there"`) {
		t.Errorf("unexpected list response %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(router, http.MethodDelete, base, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	env := newTestEnv(t, nil)
	owned, _ := env.service.Create(context.Background(), alice, "")
	foreign, _ := env.service.Create(context.Background(), chat.User{ID: "bob"}, "")
	router := newTestRouter(env, alice)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{name: "bad id", method: http.MethodGet, path: "/api/v1/chats/nope", wantStatus: http.StatusNotFound},
		{name: "foreign chat", method: http.MethodGet, path: "/api/v1/chats/" + foreign.ID.String(), wantStatus: http.StatusForbidden},
		{name: "missing content", method: http.MethodPost, path: "/api/v1/chats/" + owned.ID.String() + "/messages", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "blank content", method: http.MethodPost, path: "/api/v1/chats/" + owned.ID.String() + "/messages", body: `{"content":"  "}`, wantStatus: http.StatusBadRequest},
		{name: "missing model", method: http.MethodPut, path: "/api/v1/chats/" + owned.ID.String() + "/model", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "title too early", method: http.MethodPost, path: "/api/v1/chats/" + owned.ID.String() + "/generate-title", wantStatus: http.StatusBadRequest},
		{name: "rename", method: http.MethodPut, path: "/api/v1/chats/" + owned.ID.String() + "/title", body: `{"title":"Plans"}`, wantStatus: http.StatusOK},
		{name: "models", method: http.MethodGet, path: "/api/v1/models", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, tt.method, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestPostMessageUpstreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{name: "quota", err: upstreamStatusError(http.StatusTooManyRequests), wantStatus: http.StatusTooManyRequests, wantReason: "message_limit_reached"},
		{name: "outage", err: upstreamStatusError(http.StatusServiceUnavailable), wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			conv, _ := env.service.Create(context.Background(), alice, "")
			env.completer.err = tt.err
			router := newTestRouter(env, alice)

			w := doJSON(router, http.MethodPost, "/api/v1/chats/"+conv.ID.String()+"/messages", `{"content":"Hello"}`)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantReason != "" && !strings.Contains(w.Body.String(), tt.wantReason) {
				t.Errorf("expected reason %q in %s", tt.wantReason, w.Body.String())
			}
		})
	}
}

func TestSendLimitsApplyToSendEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	conv, _ := env.service.Create(context.Background(), alice, "")
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusTooManyRequests) }
	router := newTestRouter(env, alice, deny)

	base := "/api/v1/chats/" + conv.ID.String()
	if w := doJSON(router, http.MethodPost, base+"/messages", `{"content":"Hello"}`); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected messages to be limited, got %d", w.Code)
	}
	if w := doJSON(router, http.MethodPost, base+"/stream", `{"content":"Hello"}`); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected stream to be limited, got %d", w.Code)
	}
	if w := doJSON(router, http.MethodGet, base, ""); w.Code != http.StatusOK {
		t.Errorf("expected reads to pass, got %d", w.Code)
	}
}

func TestStreamEndpointWritesEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	conv, _ := env.service.Create(context.Background(), alice, "")
	env.completer.stream = `data: {"choices":[{"delta":{"content":"Hi"}}]}` + "\n\n" +
		`data: {"choices":[{"delta":{"content":" there"}}]}` + "\n\n" +
		"data: [DONE]\n\n"
	router := newTestRouter(env, alice)

	w := doJSON(router, http.MethodPost, "/api/v1/chats/"+conv.ID.String()+"/stream", `{"content":"Hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected event stream, got %q", ct)
	}

	var events []streaming.Event
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event streaming.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			t.Fatalf("failed to decode event %q: %v", line, err)
		}
		events = append(events, event)
	}

	if len(events) != 3 {
		t.Fatalf("expected 2 chunks and done, got %+v", events)
	}
	if events[0].Content != "Hi" || events[1].Content != " there" || events[2].Type != streaming.EventDone {
		t.Errorf("unexpected events %+v", events)
	}
	if events[2].Data["should_generate_title"] != true {
		t.Errorf("expected title flag in done event, got %+v", events[2].Data)
	}
}

func TestStreamEndpointErrorBeforeFirstChunk(t *testing.T) {
	env := newTestEnv(t, nil)
	conv, _ := env.service.Create(context.Background(), alice, "")
	env.completer.stream = `data: {"error":{"code":429,"message":"quota"}}` + "\n\n"
	router := newTestRouter(env, alice)

	w := doJSON(router, http.MethodPost, "/api/v1/chats/"+conv.ID.String()+"/stream", `{"content":"Hello"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", w.Code, w.Body.String())
	}
}
