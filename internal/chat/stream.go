package chat

import (
	"errors"
	"io"
	"sync"

	"github.com/eternisai/enchanted-chat/internal/upstream"
)

// Stream is a live assistant reply. Recv yields content deltas until io.EOF.
type Stream struct {
	upstream *upstream.Stream
	model    string

	usage   *upstream.Usage
	err     error
	onClose func(usage *upstream.Usage, err error)
	once    sync.Once
}

// Model returns the model actually used for the turn.
func (s *Stream) Model() string {
	return s.model
}

// Recv returns the next non-empty content delta. Upstream failures are mapped
// to domain errors.
func (s *Stream) Recv() (string, error) {
	for {
		chunk, err := s.upstream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			s.err = mapUpstreamError(err)
			return "", s.err
		}

		if chunk.Usage != nil {
			s.usage = chunk.Usage
		}

		if content := chunk.Content(); content != "" {
			return content, nil
		}
	}
}

// Close releases the upstream connection and reports usage once.
func (s *Stream) Close() error {
	err := s.upstream.Close()
	s.once.Do(func() {
		if s.onClose != nil {
			s.onClose(s.usage, s.err)
		}
	})
	return err
}
