package errors

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitReason distinguishes the local send limiter from upstream quota exhaustion.
type RateLimitReason string

const (
	ReasonRateLimited         RateLimitReason = "rate_limited"
	ReasonMessageLimitReached RateLimitReason = "message_limit_reached"
)

// RateLimitError represents a standardized 429 Too Many Requests response.
type RateLimitError struct {
	Error      string          `json:"error"`
	UIMessage  string          `json:"uiMessage"`
	Reason     RateLimitReason `json:"reason"`
	RetryAfter int             `json:"retry_after_seconds,omitempty"`
}

// AbortWithRateLimit sends a 429 response with the RateLimitError and aborts the request.
func AbortWithRateLimit(c *gin.Context, err *RateLimitError) {
	if err.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(err.RetryAfter))
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, err)
}

// RateLimited creates a RateLimitError for the per-user send limiter.
func RateLimited(retryAfter time.Duration) *RateLimitError {
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return &RateLimitError{
		Error:      "Too many messages, slow down",
		UIMessage:  "You are sending messages too quickly. Please wait a moment.",
		Reason:     ReasonRateLimited,
		RetryAfter: seconds,
	}
}

// MessageLimitReached creates a RateLimitError for an exhausted upstream quota.
func MessageLimitReached() *RateLimitError {
	return &RateLimitError{
		Error:     "Message limit reached",
		UIMessage: "You have reached the message limit. Please try again later.",
		Reason:    ReasonMessageLimitReached,
	}
}
