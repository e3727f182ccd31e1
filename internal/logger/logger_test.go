package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithConversationID(ctx, "conv-1")

	log.WithContext(ctx).WithComponent("test").Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log line %q: %v", buf.String(), err)
	}

	expected := map[string]string{
		"request_id":      "req-1",
		"user_id":         "user-1",
		"conversation_id": "conv-1",
		"component":       "test",
		"instance_id":     GetInstanceID(),
	}
	for key, want := range expected {
		if got, _ := entry[key].(string); got != want {
			t.Errorf("expected %s=%q, got %q", key, want, got)
		}
	}
	if _, ok := entry["operation"]; ok {
		t.Error("operation should be omitted when not set")
	}
}

func TestFromConfig(t *testing.T) {
	t.Setenv("APP_ENV", "")

	cfg := FromConfig("warn", "")
	if cfg.Level != slog.LevelWarn || cfg.Format != "text" {
		t.Errorf("unexpected config %+v", cfg)
	}

	t.Setenv("APP_ENV", "production")
	if cfg := FromConfig("info", "text"); cfg.Format != "json" {
		t.Errorf("expected json format in production, got %q", cfg.Format)
	}
}

func TestRequestLoggingMiddlewareReusesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelError, Format: "json", Output: &buf})

	router := gin.New()
	router.Use(RequestLoggingMiddleware(log))

	var seen string
	router.GET("/ping", func(c *gin.Context) {
		seen = RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if seen != "abc-123" {
		t.Errorf("expected request id abc-123 in context, got %q", seen)
	}
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("expected echoed request id, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("expected generated request id")
	}
}
