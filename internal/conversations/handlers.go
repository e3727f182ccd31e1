package conversations

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eternisai/enchanted-chat/internal/catalog"
	"github.com/eternisai/enchanted-chat/internal/chat"
	apierrors "github.com/eternisai/enchanted-chat/internal/errors"
	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/eternisai/enchanted-chat/internal/streaming"
	"github.com/eternisai/enchanted-chat/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// statusClientClosedRequest is logged when the caller disconnects mid-turn.
const statusClientClosedRequest = 499

// ModelSource lists the selectable models.
type ModelSource interface {
	Models(ctx context.Context) ([]catalog.ModelDescriptor, error)
}

type Handler struct {
	service     *Service
	models      ModelSource
	broadcaster streaming.Broadcaster
	logger      *logger.Logger
}

func NewHandler(service *Service, models ModelSource, broadcaster streaming.Broadcaster, log *logger.Logger) *Handler {
	return &Handler{
		service:     service,
		models:      models,
		broadcaster: broadcaster,
		logger:      log.WithComponent("conversations-handler"),
	}
}

type createRequest struct {
	Model string `json:"model"`
}

type modelRequest struct {
	Model string `json:"model" binding:"required"`
}

type titleRequest struct {
	Title string `json:"title" binding:"required"`
}

type messageRequest struct {
	Content string `json:"content" binding:"required"`
}

// RegisterRoutes mounts the chat endpoints on a group that has run
// users.LoadUser. sendLimits guard the two endpoints that call the model.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup, sendLimits ...gin.HandlerFunc) {
	group.GET("/models", h.ListModels)

	chats := group.Group("/chats")
	chats.GET("", h.List)
	chats.POST("", h.Create)
	chats.GET("/:id", h.Get)
	chats.DELETE("/:id", h.Delete)
	chats.PUT("/:id/model", h.UpdateModel)
	chats.PUT("/:id/title", h.Rename)
	chats.POST("/:id/generate-title", h.GenerateTitle)
	chats.POST("/:id/messages", chain(sendLimits, h.PostMessage)...)
	chats.POST("/:id/stream", chain(sendLimits, h.Stream)...)
	chats.GET("/:id/events", h.Watch)
}

// ListModels handles GET /models.
func (h *Handler) ListModels(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}

	models, err := h.models.Models(c.Request.Context())
	if err != nil {
		h.logger.WithContext(c.Request.Context()).Error("failed to list models", slog.String("error", err.Error()))
		apierrors.AbortWithBadGateway(c, "Failed to list models", nil)
		return
	}

	selected := user.PreferredModel
	if selected == "" {
		selected = h.service.dispatcher.DefaultModel()
	}

	c.JSON(http.StatusOK, gin.H{
		"models":         models,
		"selected_model": selected,
	})
}

// List handles GET /chats.
func (h *Handler) List(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}

	summaries, err := h.service.List(c.Request.Context(), user)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": summaries})
}

// Create handles POST /chats.
func (h *Handler) Create(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}

	var req createRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apierrors.BadRequest(c, "Invalid request body", map[string]interface{}{"error": err.Error()})
			return
		}
	}

	conv, err := h.service.Create(c.Request.Context(), user, req.Model)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// Get handles GET /chats/:id.
func (h *Handler) Get(c *gin.Context) {
	user, id, ok := h.target(c)
	if !ok {
		return
	}

	detail, err := h.service.Get(c.Request.Context(), user, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Delete handles DELETE /chats/:id.
func (h *Handler) Delete(c *gin.Context) {
	user, id, ok := h.target(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), user, id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateModel handles PUT /chats/:id/model.
func (h *Handler) UpdateModel(c *gin.Context) {
	user, id, ok := h.target(c)
	if !ok {
		return
	}

	var req modelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body", map[string]interface{}{"model": "model is required"})
		return
	}

	conv, err := h.service.UpdateModel(c.Request.Context(), user, id, req.Model)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// Rename handles PUT /chats/:id/title.
func (h *Handler) Rename(c *gin.Context) {
	user, id, ok := h.target(c)
	if !ok {
		return
	}

	var req titleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body", map[string]interface{}{"title": "title is required"})
		return
	}

	conv, err := h.service.Rename(c.Request.Context(), user, id, req.Title)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// GenerateTitle handles POST /chats/:id/generate-title.
func (h *Handler) GenerateTitle(c *gin.Context) {
	user, id, ok := h.target(c)
	if !ok {
		return
	}

	conv, err := h.service.GenerateTitle(c.Request.Context(), user, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// PostMessage handles POST /chats/:id/messages.
func (h *Handler) PostMessage(c *gin.Context) {
	user, id, ok := h.target(c)
	if !ok {
		return
	}

	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body", map[string]interface{}{"content": "content is required"})
		return
	}

	exchange, err := h.service.PostMessage(c.Request.Context(), user, id, req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exchange)
}

// Stream handles POST /chats/:id/stream. Errors before the first event are
// plain JSON responses; later ones end the event stream.
func (h *Handler) Stream(c *gin.Context) {
	user, id, ok := h.target(c)
	if !ok {
		return
	}

	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body", map[string]interface{}{"content": "content is required"})
		return
	}

	sse := streaming.NewSSEWriter(c.Writer)
	exchange, err := h.service.StreamMessage(c.Request.Context(), user, id, req.Content, sse)

	if err != nil && !sse.Started() {
		h.writeError(c, err)
		return
	}
	if err != nil {
		message, reason := streamFailure(err)
		h.logger.WithContext(c.Request.Context()).Warn("stream ended with error",
			slog.String("error", err.Error()),
			slog.String("reason", reason))
		sse.WriteError(message, reason)
		return
	}

	sse.WriteDone(map[string]interface{}{
		"user_message_id":       exchange.UserMessage.ID.String(),
		"assistant_message_id":  exchange.AssistantMessage.ID.String(),
		"should_generate_title": exchange.ShouldGenerateTitle,
	})
}

// Watch handles GET /chats/:id/events.
func (h *Handler) Watch(c *gin.Context) {
	user, id, ok := h.target(c)
	if !ok {
		return
	}

	if _, err := h.service.owned(c.Request.Context(), user, id); err != nil {
		h.writeError(c, err)
		return
	}

	streaming.ServeWatch(c.Writer, c.Request, h.broadcaster, id.String(), h.logger)
}

func chain(middleware []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(middleware)+1)
	out = append(out, middleware...)
	return append(out, handler)
}

func (h *Handler) user(c *gin.Context) (chat.User, bool) {
	user, ok := users.GetUser(c)
	if !ok {
		apierrors.Unauthorized(c, "User not authenticated", nil)
		return chat.User{}, false
	}
	return user, true
}

// target resolves the caller and the :id path parameter.
func (h *Handler) target(c *gin.Context) (chat.User, uuid.UUID, bool) {
	user, ok := h.user(c)
	if !ok {
		return chat.User{}, uuid.Nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.NotFound(c, "Chat not found", map[string]interface{}{"chat_id": c.Param("id")})
		return chat.User{}, uuid.Nil, false
	}
	return user, id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var validationErr *ValidationError

	switch {
	case errors.As(err, &validationErr):
		apierrors.BadRequest(c, "Invalid request", map[string]interface{}{validationErr.Field: validationErr.Message})
	case errors.Is(err, ErrNotFound):
		apierrors.NotFound(c, "Chat not found", map[string]interface{}{"chat_id": c.Param("id")})
	case errors.Is(err, ErrNotOwned):
		apierrors.AbortWithForbidden(c, apierrors.ChatNotOwned(c.Param("id")))
	case errors.Is(err, ErrNotEnoughMessages):
		apierrors.BadRequest(c, "Chat needs at least two messages", nil)
	case errors.Is(err, chat.ErrMessageLimitReached):
		apierrors.AbortWithRateLimit(c, apierrors.MessageLimitReached())
	case errors.Is(err, chat.ErrUpstreamUnavailable):
		apierrors.AbortWithBadGateway(c, "Model provider unavailable", nil)
	case errors.Is(err, context.Canceled):
		h.logger.WithContext(c.Request.Context()).Debug("client went away")
		c.AbortWithStatus(statusClientClosedRequest)
	default:
		h.logger.WithContext(c.Request.Context()).Error("chat request failed", slog.String("error", err.Error()))
		apierrors.Internal(c, "Internal server error", nil)
	}
}

// streamFailure maps an error to the message and reason of a terminal SSE error event.
func streamFailure(err error) (string, string) {
	switch {
	case errors.Is(err, chat.ErrMessageLimitReached):
		return "Message limit reached", string(apierrors.ReasonMessageLimitReached)
	case errors.Is(err, chat.ErrUpstreamUnavailable):
		return "Model provider unavailable", "upstream_unavailable"
	case errors.Is(err, context.Canceled):
		return "Request cancelled", "cancelled"
	default:
		return "Internal server error", "internal"
	}
}
