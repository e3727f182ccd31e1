package request_tracking

import (
	"log/slog"
	"time"

	"github.com/eternisai/enchanted-chat/internal/auth"
	apierrors "github.com/eternisai/enchanted-chat/internal/errors"
	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an unused per-user limiter is kept.
const limiterIdleTTL = 10 * time.Minute

// RateLimiter limits message sends per user with a token bucket.
type RateLimiter struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
	logger   *logger.Logger
}

// NewRateLimiter allows messagesPerMinute sustained sends with the given burst.
func NewRateLimiter(messagesPerMinute, burst int, log *logger.Logger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}

	return &RateLimiter{
		limiters: cache.New(limiterIdleTTL, 2*limiterIdleTTL),
		limit:    rate.Limit(float64(messagesPerMinute) / 60),
		burst:    burst,
		logger:   log.WithComponent("rate_limiter"),
	}
}

func (l *RateLimiter) limiter(userID string) *rate.Limiter {
	if v, ok := l.limiters.Get(userID); ok {
		lim := v.(*rate.Limiter)
		l.limiters.SetDefault(userID, lim)
		return lim
	}

	lim := rate.NewLimiter(l.limit, l.burst)
	if err := l.limiters.Add(userID, lim, cache.DefaultExpiration); err != nil {
		// Another request created it first.
		if v, ok := l.limiters.Get(userID); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// Allow consumes one token for the user and reports how long to wait when none is left.
func (l *RateLimiter) Allow(userID string, now time.Time) (bool, time.Duration) {
	reservation := l.limiter(userID).ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Minute
	}

	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Available returns the tokens currently left for the user.
func (l *RateLimiter) Available(userID string) float64 {
	return l.limiter(userID).Tokens()
}

// Middleware rejects sends above the user's rate with 429 rate_limited.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			c.Next()
			return
		}

		allowed, retryAfter := l.Allow(userID, time.Now())
		if !allowed {
			l.logger.WithContext(c.Request.Context()).Warn("message rate limit exceeded",
				slog.Duration("retry_after", retryAfter))
			apierrors.AbortWithRateLimit(c, apierrors.RateLimited(retryAfter))
			return
		}

		c.Next()
	}
}
