package upstream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// maxEventSize is the maximum size of a single SSE line.
const maxEventSize = 1024 * 1024

var doneMarker = []byte("[DONE]")

// Stream reads a server-sent-events completion stream chunk by chunk.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner

	closeOnce sync.Once
	closeErr  error
	done      bool
}

// NewStream wraps an SSE response body.
func NewStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	return &Stream{
		body:    body,
		scanner: scanner,
	}
}

// Recv returns the next chunk. It returns io.EOF after the [DONE] marker or
// when the body ends.
func (s *Stream) Recv() (StreamChunk, error) {
	if s.done {
		return StreamChunk{}, io.EOF
	}

	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())

		// Blank separators and ": OPENROUTER PROCESSING" keep-alive comments.
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}

		data := bytes.TrimSpace(line[len("data:"):])
		if bytes.Equal(data, doneMarker) {
			s.done = true
			return StreamChunk{}, io.EOF
		}

		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return StreamChunk{}, fmt.Errorf("failed to parse stream chunk: %w", err)
		}

		if chunk.Error != nil {
			s.done = true
			return StreamChunk{}, &APIError{
				StatusCode: streamErrorStatus(chunk.Error.Code),
				Code:       fmt.Sprint(chunk.Error.Code),
				Message:    chunk.Error.Message,
			}
		}

		return chunk, nil
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return StreamChunk{}, fmt.Errorf("stream event exceeded %d bytes: %w", maxEventSize, err)
		}
		return StreamChunk{}, err
	}
	return StreamChunk{}, io.EOF
}

// Close releases the underlying response body. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// streamErrorStatus maps an in-stream error code to an HTTP status when it is numeric.
func streamErrorStatus(code any) int {
	if n, ok := code.(float64); ok && n >= 100 && n < 600 {
		return int(n)
	}
	return 0
}
