package users

import (
	"log/slog"

	"github.com/eternisai/enchanted-chat/internal/auth"
	"github.com/eternisai/enchanted-chat/internal/chat"
	apierrors "github.com/eternisai/enchanted-chat/internal/errors"
	"github.com/gin-gonic/gin"
)

const userKey = "chat_user"

// LoadUser resolves the authenticated identity into a chat user. It must run after auth.RequireAuth.
func (s *Service) LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.GetIdentity(c)
		if !ok {
			apierrors.AbortWithUnauthorized(c, "User not authenticated", nil)
			return
		}

		user, err := s.Resolve(c.Request.Context(), identity)
		if err != nil {
			s.logger.WithContext(c.Request.Context()).Error("failed to load user", slog.String("error", err.Error()))
			apierrors.AbortWithInternal(c, "Failed to load user", nil)
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// GetUser returns the user set by LoadUser.
func GetUser(c *gin.Context) (chat.User, bool) {
	value, exists := c.Get(userKey)
	if !exists {
		return chat.User{}, false
	}

	user, ok := value.(chat.User)
	return user, ok
}

// SetUser stores a user on the gin context.
func SetUser(c *gin.Context, user chat.User) {
	c.Set(userKey, user)
}
