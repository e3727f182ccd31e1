package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{BaseURL: server.URL + "/", APIKey: "test-key", Timeout: 5 * time.Second})
}

func TestListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization %q", got)
		}
		w.Write([]byte(`{"data":[{"id":"a:free","name":"A","context_length":8192,"top_provider":{"max_completion_tokens":2048},"pricing":{"prompt":"0","completion":"0"}}]}`))
	})

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 1 || models[0].ID != "a:free" || models[0].ContextLength != 8192 {
		t.Fatalf("unexpected models %+v", models)
	}
	if models[0].TopProvider == nil || *models[0].TopProvider.MaxCompletionTokens != 2048 {
		t.Errorf("expected max completion tokens 2048")
	}
}

func TestCreateChatCompletion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("invalid request body: %v", err)
		}
		if req.Stream || req.Model != "m:free" || req.Temperature != 0.7 || len(req.Messages) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"id":"1","choices":[{"message":{"role":"assistant","content":"Hi there"}}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	})

	resp, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{
		Model:       "m:free",
		Temperature: 0.7,
		Messages: []ChatMessage{
			{Role: "system", Content: "sys"},
			{Role: "user", Content: "Hello"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content() != "Hi there" || resp.Usage.TotalTokens != 5 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestCreateChatCompletionErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "missing choices",
			status: http.StatusOK,
			body:   `{"error":{"message":"Rate limit exceeded: free-models-per-day","code":429}}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrMissingChoices) {
					t.Errorf("expected ErrMissingChoices, got %v", err)
				}
			},
		},
		{
			name:   "empty choices",
			status: http.StatusOK,
			body:   `{"id":"x","choices":[]}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrMissingChoices) {
					t.Errorf("expected ErrMissingChoices, got %v", err)
				}
			},
		},
		{
			name:   "api error",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"slow down","code":429}}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("expected *APIError, got %v", err)
				}
				if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Message != "slow down" || apiErr.Code != "429" {
					t.Errorf("unexpected api error %+v", apiErr)
				}
			},
		},
		{
			name:   "plain text error",
			status: http.StatusBadGateway,
			body:   "bad gateway",
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.Message != "bad gateway" {
					t.Errorf("unexpected error %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
			tt.check(t, err)
		})
	}
}

func TestCreateChatCompletionRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0"})

	if _, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCreateChatCompletionStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream || req.StreamOptions == nil || !req.StreamOptions.IncludeUsage {
			t.Errorf("expected stream request with usage, got %+v", req)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(": OPENROUTER PROCESSING\n\n"))
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"Hi"}}]}` + "\n\n"))
		w.Write([]byte(`data: {"choices":[{"delta":{"content":" there"},"finish_reason":"stop"}]}` + "\n\n"))
		w.Write([]byte(`data: {"choices":[],"usage":{"prompt_tokens":4,"completion_tokens":2,"total_tokens":6}}` + "\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	})

	stream, err := client.CreateChatCompletionStream(context.Background(), ChatCompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	var content strings.Builder
	var usage *Usage
	var finish string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content.WriteString(chunk.Content())
		if chunk.FinishReason() != "" {
			finish = chunk.FinishReason()
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}

	if content.String() != "Hi there" || finish != "stop" {
		t.Errorf("unexpected content %q finish %q", content.String(), finish)
	}
	if usage == nil || usage.TotalTokens != 6 {
		t.Errorf("expected usage chunk, got %+v", usage)
	}

	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after done, got %v", err)
	}
}

func TestStreamInBandError(t *testing.T) {
	body := `data: {"choices":[{"delta":{"content":"Hi"}}]}` + "\n\n" +
		`data: {"error":{"code":429,"message":"quota"}}` + "\n\n"
	stream := NewStream(io.NopCloser(strings.NewReader(body)))

	if _, err := stream.Recv(); err != nil {
		t.Fatalf("unexpected error on first chunk: %v", err)
	}

	_, err := stream.Recv()
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 APIError, got %v", err)
	}

	if err := stream.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestStreamContextCancellation(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"Hi"}}]}` + "\n\n"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.CreateChatCompletionStream(ctx, ChatCompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	if _, err := stream.Recv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancel()
	if _, err := stream.Recv(); err == nil {
		t.Errorf("expected stream to end after cancellation, got %v", err)
	}
}
