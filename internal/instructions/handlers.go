package instructions

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/eternisai/enchanted-chat/internal/auth"
	apierrors "github.com/eternisai/enchanted-chat/internal/errors"
	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log.WithComponent("instructions-handler"),
	}
}

// RegisterRoutes mounts the instruction endpoints on an authenticated group.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/instructions", h.Get)
	group.PUT("/instructions", h.Update)
	group.POST("/instructions/commands", h.AddCommand)
	group.DELETE("/instructions/commands", h.RemoveCommand)
	group.POST("/instructions/toggle", h.Toggle)
}

// Get handles GET /instructions.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "User not authenticated", nil)
		return
	}

	instr, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, instr)
}

// Update handles PUT /instructions.
func (h *Handler) Update(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "User not authenticated", nil)
		return
	}

	var patch Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		apierrors.BadRequest(c, "Invalid request body", map[string]interface{}{"error": err.Error()})
		return
	}

	instr, err := h.service.Update(c.Request.Context(), userID, patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, instr)
}

// AddCommand handles POST /instructions/commands.
func (h *Handler) AddCommand(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "User not authenticated", nil)
		return
	}

	var req AddCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body", map[string]interface{}{"error": err.Error()})
		return
	}

	instr, err := h.service.AddCommand(c.Request.Context(), userID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, instr)
}

// RemoveCommand handles DELETE /instructions/commands.
func (h *Handler) RemoveCommand(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "User not authenticated", nil)
		return
	}

	var req RemoveCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "index is required", map[string]interface{}{"error": err.Error()})
		return
	}

	instr, err := h.service.RemoveCommand(c.Request.Context(), userID, *req.Index)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, instr)
}

// Toggle handles POST /instructions/toggle.
func (h *Handler) Toggle(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "User not authenticated", nil)
		return
	}

	instr, err := h.service.Toggle(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, instr)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		apierrors.BadRequest(c, "Validation failed", map[string]interface{}{validationErr.Field: validationErr.Message})
	case errors.Is(err, ErrCommandNotFound):
		apierrors.NotFound(c, "Command not found", nil)
	default:
		h.logger.WithContext(c.Request.Context()).Error("instructions request failed", slog.String("error", err.Error()))
		apierrors.Internal(c, "Failed to process custom instructions", nil)
	}
}
