package request_tracking

import (
	"math"
	"net/http"

	"github.com/eternisai/enchanted-chat/internal/auth"
	apierrors "github.com/eternisai/enchanted-chat/internal/errors"
	"github.com/gin-gonic/gin"
)

// RateLimitStatusHandler returns the current send allowance for the authenticated user.
// limiter is nil when rate limiting is disabled.
func RateLimitStatusHandler(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := auth.GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "User not authenticated", nil)
			return
		}

		if limiter == nil {
			c.JSON(http.StatusOK, gin.H{
				"enabled": false,
				"message": "Rate limiting is disabled",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"enabled":             true,
			"messages_per_minute": float64(limiter.limit) * 60,
			"burst":               limiter.burst,
			"remaining":           int(math.Max(0, math.Floor(limiter.Available(userID)))),
		})
	}
}
