package streaming

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SSEWriter writes a streamed turn as server-sent events, one JSON object per data line.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	flusher, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: flusher}
}

// Started reports whether any event has been written.
func (s *SSEWriter) Started() bool {
	return s.started
}

// WriteChunk sends one content delta.
func (s *SSEWriter) WriteChunk(content string) error {
	return s.WriteEvent(Event{Type: EventChunk, Content: content})
}

// WriteDone sends the terminal success event.
func (s *SSEWriter) WriteDone(data map[string]interface{}) error {
	return s.WriteEvent(Event{Type: EventDone, Data: data})
}

// WriteError sends the terminal failure event.
func (s *SSEWriter) WriteError(message, reason string) error {
	return s.WriteEvent(Event{Type: EventError, Error: message, Reason: reason})
}

// WriteEvent writes and flushes one event.
func (s *SSEWriter) WriteEvent(event Event) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
