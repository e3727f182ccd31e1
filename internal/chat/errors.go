package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/eternisai/enchanted-chat/internal/upstream"
)

var (
	// ErrUpstreamUnavailable wraps any failure talking to the model provider.
	ErrUpstreamUnavailable = errors.New("model provider unavailable")
	// ErrMessageLimitReached is the user-facing form of an exhausted upstream quota.
	ErrMessageLimitReached = errors.New("message limit reached")
)

// mapUpstreamError converts a client error into a domain error.
func mapUpstreamError(err error) error {
	if errors.Is(err, upstream.ErrMissingChoices) {
		return fmt.Errorf("%w: %v", ErrMessageLimitReached, err)
	}

	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ErrMessageLimitReached, err)
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
}

// requestStatus classifies an upstream error for usage records.
func requestStatus(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, context.Canceled):
		return StatusCancelled
	case errors.Is(err, ErrMessageLimitReached):
		return StatusLimited
	default:
		return StatusFailed
	}
}
